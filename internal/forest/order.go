package forest

import "sort"

// ComputeOrder walks the tree depth-first from its root, visiting the
// children of each node earliest first, and returns every node with its
// zero-based visit order and its depth. The walk uses an explicit stack
// so deep threads cannot exhaust the goroutine stack.
func ComputeOrder(nodes []Node) ([]Position, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	t := NewTree(nodes)
	root, err := t.Root()
	if err != nil {
		return nil, err
	}

	type frame struct {
		id    int64
		depth int
	}
	positions := make([]Position, 0, len(nodes))
	visited := make(map[int64]bool, len(nodes))
	stack := []frame{{id: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[f.id] {
			continue
		}
		visited[f.id] = true
		positions = append(positions, Position{ID: f.id, Order: len(positions), Depth: f.depth})

		children := t.children[f.id]
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: children[i], depth: f.depth + 1})
		}
	}

	if len(positions) != len(nodes) {
		var missing []int64
		for _, n := range nodes {
			if !visited[n.ID] {
				missing = append(missing, n.ID)
			}
		}
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return nil, &UnreachableError{IDs: missing}
	}
	return positions, nil
}
