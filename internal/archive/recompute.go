package archive

import (
	"context"
	"fmt"

	"github.com/nhle/listarchive/internal/forest"
	"github.com/nhle/listarchive/internal/store"
)

// Recompute rewrites thread_order and thread_depth of every email of a
// thread. Only changed rows are written; a missing thread is a no-op.
func (a *Archiver) Recompute(ctx context.Context, threadID int64) error {
	err := a.store.InTx(ctx, func(q store.Querier) error {
		return recompute(ctx, q, threadID)
	})
	if err != nil {
		return fmt.Errorf("recomputing thread %d: %w", threadID, err)
	}
	return nil
}

func recompute(ctx context.Context, q store.Querier, threadID int64) error {
	nodes, err := q.GetThreadNodes(ctx, threadID)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return nil
	}

	current := make(map[int64]store.EmailNode, len(nodes))
	fnodes := make([]forest.Node, len(nodes))
	for i, n := range nodes {
		current[n.ID] = n
		fnodes[i] = forest.Node{ID: n.ID, ParentID: n.ParentID, Date: n.Date}
	}

	positions, err := forest.ComputeOrder(fnodes)
	if err != nil {
		return err
	}

	var changed []store.Position
	for _, p := range positions {
		n := current[p.ID]
		if n.ThreadOrder != nil && *n.ThreadOrder == p.Order && n.ThreadDepth == p.Depth {
			continue
		}
		changed = append(changed, store.Position{EmailID: p.ID, Order: p.Order, Depth: p.Depth})
	}
	return q.SetEmailPositions(ctx, changed)
}
