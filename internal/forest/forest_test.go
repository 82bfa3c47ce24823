package forest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/listarchive/internal/forest"
)

var base = time.Date(2012, 11, 2, 12, 0, 0, 0, time.UTC)

func node(id int64, parent int64, minutes int) forest.Node {
	n := forest.Node{ID: id, Date: base.Add(time.Duration(minutes) * time.Minute)}
	if parent != 0 {
		n.ParentID = &parent
	}
	return n
}

func orderOf(t *testing.T, nodes []forest.Node) ([]int64, map[int64]int) {
	t.Helper()
	positions, err := forest.ComputeOrder(nodes)
	require.NoError(t, err)
	ids := make([]int64, len(positions))
	depths := make(map[int64]int)
	for i, p := range positions {
		assert.Equal(t, i, p.Order)
		ids[i] = p.ID
		depths[p.ID] = p.Depth
	}
	return ids, depths
}

func TestComputeOrder(t *testing.T) {
	// 1
	// ├── 2
	// │   ├── 4
	// │   └── 5
	// └── 3
	nodes := []forest.Node{
		node(1, 0, 0),
		node(3, 1, 20),
		node(5, 2, 40),
		node(2, 1, 10),
		node(4, 2, 30),
	}
	ids, depths := orderOf(t, nodes)
	assert.Equal(t, []int64{1, 2, 4, 5, 3}, ids)
	assert.Equal(t, map[int64]int{1: 0, 2: 1, 4: 2, 5: 2, 3: 1}, depths)
}

func TestComputeOrderTieBreak(t *testing.T) {
	nodes := []forest.Node{node(1, 0, 0), node(9, 1, 5), node(7, 1, 5), node(8, 1, 5)}
	for i := 0; i < 5; i++ {
		ids, _ := orderOf(t, nodes)
		assert.Equal(t, []int64{1, 7, 8, 9}, ids)
		nodes = append(nodes[1:], nodes[0])
	}
}

func TestComputeOrderDeepThread(t *testing.T) {
	var nodes []forest.Node
	nodes = append(nodes, node(1, 0, 0))
	for i := int64(2); i <= 50000; i++ {
		nodes = append(nodes, node(i, i-1, int(i)))
	}
	positions, err := forest.ComputeOrder(nodes)
	require.NoError(t, err)
	last := positions[len(positions)-1]
	assert.Equal(t, int64(50000), last.ID)
	assert.Equal(t, 49999, last.Depth)
}

func TestComputeOrderErrors(t *testing.T) {
	_, err := forest.ComputeOrder([]forest.Node{node(1, 2, 0), node(2, 1, 1)})
	assert.ErrorIs(t, err, forest.ErrNoRoot)

	_, err = forest.ComputeOrder([]forest.Node{node(1, 0, 0), node(2, 0, 1)})
	assert.ErrorIs(t, err, forest.ErrMultipleRoots)

	_, err = forest.ComputeOrder([]forest.Node{node(1, 0, 0), node(2, 3, 1), node(3, 2, 2)})
	var unreachable *forest.UnreachableError
	require.ErrorAs(t, err, &unreachable)
	assert.Equal(t, []int64{2, 3}, unreachable.IDs)

	positions, err := forest.ComputeOrder(nil)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestSubtree(t *testing.T) {
	tree := forest.NewTree([]forest.Node{
		node(1, 0, 0),
		node(2, 1, 10),
		node(3, 2, 20),
		node(4, 2, 30),
		node(5, 1, 40),
	})
	assert.Equal(t, []int64{2, 3, 4}, tree.Subtree(2))
	assert.True(t, tree.InSubtree(2, 4))
	assert.False(t, tree.InSubtree(2, 5))
	assert.Nil(t, tree.Subtree(42))
	assert.True(t, tree.Contains(5))
	assert.False(t, tree.Contains(42))
}

func TestPlanRemoval(t *testing.T) {
	tree := forest.NewTree([]forest.Node{
		node(1, 0, 0),
		node(2, 1, 10),
		node(3, 2, 20),
		node(4, 2, 30),
		node(5, 1, 40),
	})

	t.Run("root", func(t *testing.T) {
		plan := tree.PlanRemoval(1)
		require.NotNil(t, plan.NewRoot)
		assert.Equal(t, int64(2), *plan.NewRoot)
		require.Len(t, plan.Moves, 2)
		assert.Nil(t, plan.Moves[0].ParentID)
		assert.Equal(t, int64(5), plan.Moves[1].ID)
		assert.Equal(t, int64(2), *plan.Moves[1].ParentID)
	})

	t.Run("middle", func(t *testing.T) {
		plan := tree.PlanRemoval(2)
		assert.Nil(t, plan.NewRoot)
		require.Len(t, plan.Moves, 2)
		for _, m := range plan.Moves {
			assert.Equal(t, int64(1), *m.ParentID)
		}
	})

	t.Run("leaf", func(t *testing.T) {
		assert.Empty(t, tree.PlanRemoval(5).Moves)
	})
}
