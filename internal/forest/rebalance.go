package forest

// Reparent moves one node under a new parent; a nil parent makes it root.
type Reparent struct {
	ID       int64
	ParentID *int64
}

// RemovalPlan is the set of link changes that keep a thread connected
// when one of its nodes is deleted.
type RemovalPlan struct {
	// NewRoot is set when the removed node was the root and had children.
	NewRoot *int64

	// Moves re-points every child of the removed node, NewRoot first.
	Moves []Reparent
}

// PlanRemoval computes how the children of id are re-attached when id is
// removed. Children of a non-root node move up to its parent. When the
// root is removed its earliest child becomes the new root and adopts its
// siblings.
func (t *Tree) PlanRemoval(id int64) RemovalPlan {
	n, ok := t.nodes[id]
	if !ok {
		return RemovalPlan{}
	}
	children := t.children[id]
	if len(children) == 0 {
		return RemovalPlan{}
	}

	isRoot := n.ParentID == nil || !t.Contains(*n.ParentID)
	if !isRoot {
		parent := *n.ParentID
		plan := RemovalPlan{}
		for _, c := range children {
			plan.Moves = append(plan.Moves, Reparent{ID: c, ParentID: &parent})
		}
		return plan
	}

	starter := children[0]
	plan := RemovalPlan{
		NewRoot: &starter,
		Moves:   []Reparent{{ID: starter}},
	}
	for _, c := range children[1:] {
		plan.Moves = append(plan.Moves, Reparent{ID: c, ParentID: &starter})
	}
	return plan
}
