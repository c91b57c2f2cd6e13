// Package order computes reorder plans for drag-and-drop gestures over
// sorted collections. It is pure: callers pass in the current ordering and
// get back the minimal persistence instruction, or nothing when the gesture
// resolves to a no-op.
package order

// Scope is one ordered container of item ids, e.g. a column of task ids.
type Scope struct {
	ID    string
	Items []string
}

// Move is the persistence instruction for a containerized drag: place ItemID
// into scope ScopeID at Index. Index counts positions in the target sequence
// after the moved item has been removed from its source, so a caller can
// splice the item straight in.
type Move struct {
	ItemID  string
	ScopeID string
	Index   int
}

// Position assigns one item its new index in a flat sequence.
type Position struct {
	ID    string
	Index int
}

// Resolve maps a drag-end event over containerized scopes to a Move.
// overID may name a scope (drop on a container, including an empty one) or a
// sibling item (drop on another card). The boolean is false when the gesture
// is a no-op: no drop target, dropping an item on itself, dropping on the
// item's own container, or any id the scopes do not contain.
func Resolve(activeID, overID string, scopes []Scope) (Move, bool) {
	if overID == "" || activeID == overID {
		return Move{}, false
	}

	source, oldIndex := locate(activeID, scopes)
	if source == nil {
		return Move{}, false
	}

	// Drop on a container: append to the end of a different scope.
	for i := range scopes {
		if scopes[i].ID != overID {
			continue
		}
		if scopes[i].ID == source.ID {
			return Move{}, false
		}
		return Move{ItemID: activeID, ScopeID: scopes[i].ID, Index: len(scopes[i].Items)}, true
	}

	target, newIndex := locate(overID, scopes)
	if target == nil {
		return Move{}, false
	}

	if target.ID == source.ID {
		if newIndex == oldIndex {
			return Move{}, false
		}
		// The sibling's index is measured with the moved item still in
		// place. Once the item is spliced out, that same number lands
		// after the sibling when moving down and on it when moving up,
		// which is where the drop point sits visually.
		return Move{ItemID: activeID, ScopeID: target.ID, Index: newIndex}, true
	}

	return Move{ItemID: activeID, ScopeID: target.ID, Index: newIndex}, true
}

// ResolveFlat maps a drag-end event over a single flat sequence (the board
// list) to a full renumbering. Downstream persistence assigns
// sortOrder = index for every item, so the plan covers the whole sequence,
// not just the moved element. The boolean is false on a no-op.
func ResolveFlat(activeID, overID string, ids []string) ([]Position, bool) {
	if overID == "" || activeID == overID {
		return nil, false
	}
	oldIndex := indexOf(activeID, ids)
	newIndex := indexOf(overID, ids)
	if oldIndex < 0 || newIndex < 0 || oldIndex == newIndex {
		return nil, false
	}

	reordered := Splice(ids, oldIndex, newIndex)
	plan := make([]Position, len(reordered))
	for i, id := range reordered {
		plan[i] = Position{ID: id, Index: i}
	}
	return plan, true
}

// Splice returns a copy of ids with the element at oldIndex removed and
// reinserted at newIndex (measured against the original sequence). The input
// is never modified.
func Splice(ids []string, oldIndex, newIndex int) []string {
	out := make([]string, 0, len(ids))
	out = append(out, ids[:oldIndex]...)
	out = append(out, ids[oldIndex+1:]...)
	if newIndex > len(out) {
		newIndex = len(out)
	}
	out = append(out[:newIndex], append([]string{ids[oldIndex]}, out[newIndex:]...)...)
	return out
}

// Insert returns a copy of ids with id inserted at index, clamped to the
// sequence bounds.
func Insert(ids []string, id string, index int) []string {
	if index < 0 {
		index = 0
	}
	if index > len(ids) {
		index = len(ids)
	}
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:index]...)
	out = append(out, id)
	out = append(out, ids[index:]...)
	return out
}

// Remove returns a copy of ids without id. Missing ids are tolerated.
func Remove(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, candidate := range ids {
		if candidate == id {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

func locate(itemID string, scopes []Scope) (*Scope, int) {
	for i := range scopes {
		if idx := indexOf(itemID, scopes[i].Items); idx >= 0 {
			return &scopes[i], idx
		}
	}
	return nil, -1
}

func indexOf(id string, ids []string) int {
	for i, candidate := range ids {
		if candidate == id {
			return i
		}
	}
	return -1
}
