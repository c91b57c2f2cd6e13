// Package filter narrows task and board collections by user-selected
// criteria. Predicates never mutate their input; each call returns a new
// slice computed from the current filter state.
package filter

import (
	"time"

	"taskboard/api/internal/store"
)

// TaskFilter selects tasks by priority membership and due day. A task
// without a due date is not excluded by the due-date criterion.
type TaskFilter struct {
	Priorities []string
	DueDate    *time.Time
}

// BoardFilter selects boards by creation-date range and task-count range.
type BoardFilter struct {
	CreatedFrom  *time.Time
	CreatedUntil *time.Time
	MinTasks     *int
	MaxTasks     *int
}

func (f TaskFilter) Empty() bool {
	return len(f.Priorities) == 0 && f.DueDate == nil
}

func (f TaskFilter) Match(t store.Task) bool {
	if len(f.Priorities) > 0 && !contains(f.Priorities, t.Priority) {
		return false
	}
	if f.DueDate != nil && t.DueDate != nil && !sameDay(*t.DueDate, *f.DueDate) {
		return false
	}
	return true
}

// Tasks returns the tasks matching f, preserving input order.
func Tasks(tasks []store.Task, f TaskFilter) []store.Task {
	out := make([]store.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

func (f BoardFilter) Empty() bool {
	return f.CreatedFrom == nil && f.CreatedUntil == nil && f.MinTasks == nil && f.MaxTasks == nil
}

func (f BoardFilter) Match(b store.Board) bool {
	if f.CreatedFrom != nil && b.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedUntil != nil && b.CreatedAt.After(*f.CreatedUntil) {
		return false
	}
	if f.MinTasks != nil && b.TotalTasks < *f.MinTasks {
		return false
	}
	if f.MaxTasks != nil && b.TotalTasks > *f.MaxTasks {
		return false
	}
	return true
}

// Boards returns the boards matching f, preserving input order.
func Boards(boards []store.Board, f BoardFilter) []store.Board {
	out := make([]store.Board, 0, len(boards))
	for _, b := range boards {
		if f.Match(b) {
			out = append(out, b)
		}
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
