package forest

// Subtree returns id and all of its descendants in depth-first order.
// A node met twice is skipped, so a corrupted cycle cannot loop forever.
func (t *Tree) Subtree(id int64) []int64 {
	if !t.Contains(id) {
		return nil
	}
	var out []int64
	seen := make(map[int64]bool)
	stack := []int64{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		children := t.children[cur]
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return out
}

// InSubtree reports whether candidate is id or one of its descendants.
func (t *Tree) InSubtree(id, candidate int64) bool {
	for _, n := range t.Subtree(id) {
		if n == candidate {
			return true
		}
	}
	return false
}
