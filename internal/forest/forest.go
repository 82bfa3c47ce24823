// Package forest holds the pure tree computations behind thread display:
// depth-first ordering, subtree collection, and the re-parenting plan
// applied when an email leaves a thread. Nothing here touches storage.
package forest

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrNoRoot is returned when no node of a thread lacks a parent.
	ErrNoRoot = errors.New("thread has no root")

	// ErrMultipleRoots is returned when several nodes lack a parent.
	ErrMultipleRoots = errors.New("thread has more than one root")
)

// UnreachableError lists nodes that cannot be reached from the root,
// which only happens when parent links form a cycle.
type UnreachableError struct {
	IDs []int64
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%d emails unreachable from thread root: %v", len(e.IDs), e.IDs)
}

// Node is one email as seen by the tree computations.
type Node struct {
	ID       int64
	ParentID *int64
	Date     time.Time
}

// Position is the computed place of a node in its thread.
type Position struct {
	ID    int64
	Order int
	Depth int
}

// Tree is an adjacency view over the nodes of one thread.
type Tree struct {
	nodes    map[int64]Node
	children map[int64][]int64
	roots    []int64
}

// NewTree indexes nodes by id and groups children under their parent,
// sorted by date with the id as tie-break. A node whose parent is not in
// the set is treated as a root.
func NewTree(nodes []Node) *Tree {
	t := &Tree{
		nodes:    make(map[int64]Node, len(nodes)),
		children: make(map[int64][]int64),
	}
	for _, n := range nodes {
		t.nodes[n.ID] = n
	}
	for _, n := range nodes {
		if n.ParentID == nil {
			t.roots = append(t.roots, n.ID)
			continue
		}
		if _, ok := t.nodes[*n.ParentID]; !ok {
			t.roots = append(t.roots, n.ID)
			continue
		}
		t.children[*n.ParentID] = append(t.children[*n.ParentID], n.ID)
	}
	for parent := range t.children {
		t.sortByDate(t.children[parent])
	}
	t.sortByDate(t.roots)
	return t
}

func (t *Tree) sortByDate(ids []int64) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := t.nodes[ids[i]], t.nodes[ids[j]]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID < b.ID
	})
}

// Contains reports whether id is a node of the tree.
func (t *Tree) Contains(id int64) bool {
	_, ok := t.nodes[id]
	return ok
}

// Root returns the single root of the tree.
func (t *Tree) Root() (int64, error) {
	switch len(t.roots) {
	case 0:
		return 0, ErrNoRoot
	case 1:
		return t.roots[0], nil
	}
	return 0, fmt.Errorf("%w: %v", ErrMultipleRoots, t.roots)
}
