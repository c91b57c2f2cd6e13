package search

import (
	"context"

	"taskboard/api/internal/logging"
)

// Service is the facade that tries Meilisearch first and falls back to
// Postgres full-text search.
type Service struct {
	meili *Meili
	pg    *PgSearch
}

// NewService creates a search service. meili may be nil when Meilisearch
// is not configured.
func NewService(meili *Meili, pg *PgSearch) *Service {
	return &Service{meili: meili, pg: pg}
}

func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		logging.Logger.Warnf("search: meilisearch error, falling back to postgres: %v", err)
	}

	results, total, err := s.pg.Search(q)
	if err != nil {
		logging.Logger.Errorf("search: postgres error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexBoard pushes a board into Meilisearch, fire-and-forget.
func (s *Service) IndexBoard(b BoardRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexBoard(b); err != nil {
			logging.Logger.Warnf("search: index board %s: %v", b.ID, err)
		}
	}()
}

// IndexTask pushes a task into Meilisearch, fire-and-forget.
func (s *Service) IndexTask(t TaskRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexTask(t); err != nil {
			logging.Logger.Warnf("search: index task %s: %v", t.ID, err)
		}
	}()
}

// DeleteBoard removes a board from the search index, fire-and-forget.
func (s *Service) DeleteBoard(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteBoard(id); err != nil {
			logging.Logger.Warnf("search: delete board %s: %v", id, err)
		}
	}()
}

// DeleteTask removes a task from the search index, fire-and-forget.
func (s *Service) DeleteTask(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteTask(id); err != nil {
			logging.Logger.Warnf("search: delete task %s: %v", id, err)
		}
	}()
}

// ReindexAllFromPG reads every searchable record from Postgres and pushes
// it to Meilisearch. Called at startup when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pg == nil {
		return
	}
	boards, tasks, err := s.pg.LoadAllRecords(ctx)
	if err != nil {
		logging.Logger.Errorf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexBoards(boards); err != nil {
		logging.Logger.Warnf("search: reindex boards: %v", err)
	}
	if err := s.meili.IndexTasks(tasks); err != nil {
		logging.Logger.Warnf("search: reindex tasks: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
