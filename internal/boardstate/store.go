// Package boardstate keeps an in-memory working copy of one board's
// columns and tasks and reconciles it against the backing store. Mutations
// are applied optimistically first, then persisted; a persistence failure
// replaces the working copy with a freshly loaded authoritative one.
package boardstate

import (
	"context"
	"fmt"
	"sync"

	"taskboard/api/internal/order"
	"taskboard/api/internal/store"
)

// Persister receives the placements the reconciler decides on.
type Persister interface {
	MoveTask(ctx context.Context, taskID, columnID string, index int) error
	ReorderColumns(ctx context.Context, boardID string, updates []store.SortUpdate) error
}

// Loader fetches the authoritative board view, used to recover after a
// failed persistence call.
type Loader interface {
	LoadColumns(ctx context.Context, boardID string) ([]store.ColumnWithTasks, error)
}

type Store struct {
	mu        sync.Mutex
	boardID   string
	columns   []store.ColumnWithTasks
	persister Persister
	loader    Loader
}

func New(boardID string, columns []store.ColumnWithTasks, persister Persister, loader Loader) *Store {
	return &Store{
		boardID:   boardID,
		columns:   cloneColumns(columns),
		persister: persister,
		loader:    loader,
	}
}

// Snapshot returns a copy of the working state, safe to hand out.
func (s *Store) Snapshot() []store.ColumnWithTasks {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneColumns(s.columns)
}

// Replace swaps in a new authoritative state.
func (s *Store) Replace(columns []store.ColumnWithTasks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns = cloneColumns(columns)
}

// ApplyTaskDrag resolves a drag gesture over the current state, applies the
// resulting move locally and persists it. It reports whether a move was
// made; a drop on the task's own position makes no persistence call.
func (s *Store) ApplyTaskDrag(ctx context.Context, activeID, overID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scopes := make([]order.Scope, len(s.columns))
	for i, c := range s.columns {
		ids := make([]string, len(c.Tasks))
		for j, t := range c.Tasks {
			ids[j] = t.ID
		}
		scopes[i] = order.Scope{ID: c.ID, Items: ids}
	}

	move, ok := order.Resolve(activeID, overID, scopes)
	if !ok {
		return false, nil
	}

	s.applyMove(move)
	if err := s.persister.MoveTask(ctx, move.ItemID, move.ScopeID, move.Index); err != nil {
		if reloadErr := s.reload(ctx); reloadErr != nil {
			return false, fmt.Errorf("move task: %w (reload also failed: %v)", err, reloadErr)
		}
		return false, fmt.Errorf("move task: %w", err)
	}
	return true, nil
}

// ApplyColumnDrag reorders columns within the board in response to a drag
// gesture and persists the full renumbering.
func (s *Store) ApplyColumnDrag(ctx context.Context, activeID, overID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(s.columns))
	for i, c := range s.columns {
		ids[i] = c.ID
	}
	positions, ok := order.ResolveFlat(activeID, overID, ids)
	if !ok {
		return false, nil
	}

	byID := make(map[string]store.ColumnWithTasks, len(s.columns))
	for _, c := range s.columns {
		byID[c.ID] = c
	}
	reordered := make([]store.ColumnWithTasks, 0, len(positions))
	updates := make([]store.SortUpdate, 0, len(positions))
	for _, p := range positions {
		c := byID[p.ID]
		c.SortOrder = p.Index
		reordered = append(reordered, c)
		updates = append(updates, store.SortUpdate{ID: p.ID, SortOrder: p.Index})
	}
	s.columns = reordered

	if err := s.persister.ReorderColumns(ctx, s.boardID, updates); err != nil {
		if reloadErr := s.reload(ctx); reloadErr != nil {
			return false, fmt.Errorf("reorder columns: %w (reload also failed: %v)", err, reloadErr)
		}
		return false, fmt.Errorf("reorder columns: %w", err)
	}
	return true, nil
}

// applyMove splices the task out of its source column and into the target
// at the resolved index, renumbering both columns contiguously.
func (s *Store) applyMove(move order.Move) {
	var moved *store.Task
	for i := range s.columns {
		tasks := s.columns[i].Tasks
		for j := range tasks {
			if tasks[j].ID == move.ItemID {
				t := tasks[j]
				moved = &t
				s.columns[i].Tasks = append(tasks[:j:j], tasks[j+1:]...)
				break
			}
		}
		if moved != nil {
			break
		}
	}
	if moved == nil {
		return
	}

	for i := range s.columns {
		if s.columns[i].ID != move.ScopeID {
			continue
		}
		tasks := s.columns[i].Tasks
		index := move.Index
		if index < 0 {
			index = 0
		}
		if index > len(tasks) {
			index = len(tasks)
		}
		moved.ColumnID = move.ScopeID
		s.columns[i].Tasks = append(tasks[:index:index], append([]store.Task{*moved}, tasks[index:]...)...)
		break
	}

	for i := range s.columns {
		for j := range s.columns[i].Tasks {
			s.columns[i].Tasks[j].SortOrder = j
		}
	}
}

func (s *Store) reload(ctx context.Context) error {
	columns, err := s.loader.LoadColumns(ctx, s.boardID)
	if err != nil {
		return err
	}
	s.columns = cloneColumns(columns)
	return nil
}

func cloneColumns(columns []store.ColumnWithTasks) []store.ColumnWithTasks {
	out := make([]store.ColumnWithTasks, len(columns))
	for i, c := range columns {
		tasks := make([]store.Task, len(c.Tasks))
		copy(tasks, c.Tasks)
		c.Tasks = tasks
		out[i] = c
	}
	return out
}
