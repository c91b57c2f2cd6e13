package app

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"
	"time"

	"taskboard/api/internal/config"
	"taskboard/api/internal/filter"
	"taskboard/api/internal/session"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

// fakeStore keeps everything in memory. Methods mirror PostgresStore
// semantics closely enough for the service layer, including
// sql.ErrNoRows on misses.
type fakeStore struct {
	users       map[string]store.User
	boards      map[string]store.Board
	columns     map[string]store.Column
	tasks       map[string]store.Task
	labels      map[string]store.Label
	boardLabels map[string][]string
	products    map[string][]store.Product
	saved       map[string][]store.SavedProduct
	refresh     map[string]store.User
	revokedJTI  map[string]bool

	reorderBoardCalls  int
	reorderColumnCalls int
	moveTaskCalls      []string
	moveTaskErr        error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       map[string]store.User{},
		boards:      map[string]store.Board{},
		columns:     map[string]store.Column{},
		tasks:       map[string]store.Task{},
		labels:      map[string]store.Label{},
		boardLabels: map[string][]string{},
		products:    map[string][]store.Product{},
		saved:       map[string][]store.SavedProduct{},
		refresh:     map[string]store.User{},
		revokedJTI:  map[string]bool{},
	}
}

func (f *fakeStore) EnsureUserByName(_ context.Context, name string) (store.User, error) {
	for _, u := range f.users {
		if u.DisplayName == name {
			return u, nil
		}
	}
	u := store.User{ID: util.NewID("usr"), DisplayName: name, CreatedAt: time.Now()}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) EnsureUserByProvider(_ context.Context, provider, subject, email, name string) (store.User, error) {
	for _, u := range f.users {
		if u.Provider == provider && u.ProviderSubject == subject {
			return u, nil
		}
	}
	u := store.User{ID: util.NewID("usr"), DisplayName: name, Email: email, Provider: provider, ProviderSubject: subject}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, userID string) (store.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) SaveRefreshSession(_ context.Context, tokenHash, userID string, _ time.Time) error {
	f.refresh[tokenHash] = f.users[userID]
	return nil
}

func (f *fakeStore) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	u, ok := f.refresh[tokenHash]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	delete(f.refresh, tokenHash)
	return nil
}

func (f *fakeStore) RevokeAccessToken(_ context.Context, jti string, _ time.Time) error {
	f.revokedJTI[jti] = true
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	return f.revokedJTI[jti], nil
}

func (f *fakeStore) ListBoards(_ context.Context, userID string) ([]store.Board, error) {
	var out []store.Board
	for _, b := range f.boards {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (f *fakeStore) GetBoard(_ context.Context, boardID string) (store.Board, error) {
	b, ok := f.boards[boardID]
	if !ok {
		return store.Board{}, sql.ErrNoRows
	}
	return b, nil
}

func (f *fakeStore) InsertBoard(_ context.Context, b store.Board) error {
	f.boards[b.ID] = b
	return nil
}

func (f *fakeStore) MaxBoardSortOrder(_ context.Context, userID string) (int, error) {
	max := -1
	for _, b := range f.boards {
		if b.UserID == userID && b.SortOrder > max {
			max = b.SortOrder
		}
	}
	return max, nil
}

func (f *fakeStore) UpdateBoardFields(_ context.Context, boardID, userID string, updates store.BoardFieldUpdates) error {
	b, ok := f.boards[boardID]
	if !ok || b.UserID != userID {
		return sql.ErrNoRows
	}
	if updates.Title != nil {
		b.Title = *updates.Title
	}
	if updates.Color != nil {
		b.Color = *updates.Color
	}
	if updates.Notes != nil {
		b.Notes = *updates.Notes
	}
	if updates.ClearStarted {
		b.StartedDate = nil
	} else if updates.StartedDate != nil {
		b.StartedDate = updates.StartedDate
	}
	if updates.TotalValue != nil {
		b.TotalValue = *updates.TotalValue
	}
	if updates.UpcomingValue != nil {
		b.UpcomingValue = *updates.UpcomingValue
	}
	if updates.ReceivedValue != nil {
		b.ReceivedValue = *updates.ReceivedValue
	}
	f.boards[boardID] = b
	return nil
}

func (f *fakeStore) DeleteBoard(_ context.Context, boardID, userID string) error {
	b, ok := f.boards[boardID]
	if !ok || b.UserID != userID {
		return sql.ErrNoRows
	}
	delete(f.boards, boardID)
	return nil
}

func (f *fakeStore) ReorderBoards(_ context.Context, _ string, updates []store.SortUpdate) error {
	f.reorderBoardCalls++
	for _, u := range updates {
		b := f.boards[u.ID]
		b.SortOrder = u.SortOrder
		f.boards[u.ID] = b
	}
	return nil
}

func (f *fakeStore) BoardOwner(_ context.Context, boardID string) (string, error) {
	b, ok := f.boards[boardID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return b.UserID, nil
}

func (f *fakeStore) ListColumns(_ context.Context, boardID string) ([]store.Column, error) {
	var out []store.Column
	for _, c := range f.columns {
		if c.BoardID == boardID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (f *fakeStore) ListColumnsWithTasks(ctx context.Context, boardID string) ([]store.ColumnWithTasks, error) {
	columns, _ := f.ListColumns(ctx, boardID)
	out := make([]store.ColumnWithTasks, 0, len(columns))
	for _, c := range columns {
		var tasks []store.Task
		for _, t := range f.tasks {
			if t.ColumnID == c.ID {
				tasks = append(tasks, t)
			}
		}
		sort.Slice(tasks, func(i, j int) bool { return tasks[i].SortOrder < tasks[j].SortOrder })
		if tasks == nil {
			tasks = []store.Task{}
		}
		out = append(out, store.ColumnWithTasks{Column: c, Tasks: tasks})
	}
	return out, nil
}

func (f *fakeStore) InsertColumn(_ context.Context, c store.Column) error {
	f.columns[c.ID] = c
	return nil
}

func (f *fakeStore) MaxColumnSortOrder(_ context.Context, boardID string) (int, error) {
	max := -1
	for _, c := range f.columns {
		if c.BoardID == boardID && c.SortOrder > max {
			max = c.SortOrder
		}
	}
	return max, nil
}

func (f *fakeStore) RenameColumn(_ context.Context, columnID, title string) error {
	c, ok := f.columns[columnID]
	if !ok {
		return sql.ErrNoRows
	}
	c.Title = title
	f.columns[columnID] = c
	return nil
}

func (f *fakeStore) DeleteColumn(_ context.Context, columnID string) error {
	if _, ok := f.columns[columnID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.columns, columnID)
	return nil
}

func (f *fakeStore) ReorderColumns(_ context.Context, _ string, updates []store.SortUpdate) error {
	f.reorderColumnCalls++
	for _, u := range updates {
		c := f.columns[u.ID]
		c.SortOrder = u.SortOrder
		f.columns[u.ID] = c
	}
	return nil
}

func (f *fakeStore) ColumnBoard(_ context.Context, columnID string) (string, error) {
	c, ok := f.columns[columnID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return c.BoardID, nil
}

func (f *fakeStore) GetTask(_ context.Context, taskID string) (store.Task, error) {
	t, ok := f.tasks[taskID]
	if !ok {
		return store.Task{}, sql.ErrNoRows
	}
	return t, nil
}

func (f *fakeStore) InsertTask(_ context.Context, t store.Task) error {
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeStore) MaxTaskSortOrder(_ context.Context, columnID string) (int, error) {
	max := -1
	for _, t := range f.tasks {
		if t.ColumnID == columnID && t.SortOrder > max {
			max = t.SortOrder
		}
	}
	return max, nil
}

func (f *fakeStore) UpdateTask(_ context.Context, taskID string, updates store.TaskUpdates) error {
	t, ok := f.tasks[taskID]
	if !ok {
		return sql.ErrNoRows
	}
	if updates.Title != nil {
		t.Title = *updates.Title
	}
	if updates.Description != nil {
		t.Description = *updates.Description
	}
	if updates.Assignee != nil {
		t.Assignee = *updates.Assignee
	}
	if updates.ClearDue {
		t.DueDate = nil
	} else if updates.DueDate != nil {
		t.DueDate = updates.DueDate
	}
	if updates.Priority != nil {
		t.Priority = *updates.Priority
	}
	f.tasks[taskID] = t
	return nil
}

func (f *fakeStore) DeleteTask(_ context.Context, taskID string) error {
	if _, ok := f.tasks[taskID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.tasks, taskID)
	return nil
}

func (f *fakeStore) MoveTask(_ context.Context, taskID, targetColumnID string, index int) error {
	if f.moveTaskErr != nil {
		return f.moveTaskErr
	}
	f.moveTaskCalls = append(f.moveTaskCalls, taskID)
	t, ok := f.tasks[taskID]
	if !ok {
		return sql.ErrNoRows
	}
	t.ColumnID = targetColumnID
	t.SortOrder = index
	f.tasks[taskID] = t
	return nil
}

func (f *fakeStore) TaskBoard(_ context.Context, taskID string) (string, error) {
	t, ok := f.tasks[taskID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return f.ColumnBoard(context.Background(), t.ColumnID)
}

func (f *fakeStore) ListLabels(_ context.Context, userID string) ([]store.Label, error) {
	var out []store.Label
	for _, l := range f.labels {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertLabel(_ context.Context, l store.Label) error {
	f.labels[l.ID] = l
	return nil
}

func (f *fakeStore) DeleteLabel(_ context.Context, labelID, userID string) error {
	l, ok := f.labels[labelID]
	if !ok || l.UserID != userID {
		return sql.ErrNoRows
	}
	delete(f.labels, labelID)
	return nil
}

func (f *fakeStore) SetBoardLabels(_ context.Context, boardID string, labelIDs []string) error {
	f.boardLabels[boardID] = labelIDs
	return nil
}

func (f *fakeStore) ListBoardLabels(_ context.Context, boardID string) ([]store.Label, error) {
	var out []store.Label
	for _, id := range f.boardLabels[boardID] {
		if l, ok := f.labels[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) ListProducts(_ context.Context, boardID string) ([]store.Product, error) {
	return f.products[boardID], nil
}

func (f *fakeStore) ReplaceProducts(_ context.Context, boardID string, products []store.Product, annual float64, endingDate *time.Time) error {
	b, ok := f.boards[boardID]
	if !ok {
		return sql.ErrNoRows
	}
	f.products[boardID] = products
	b.Annual = annual
	b.EndingDate = endingDate
	f.boards[boardID] = b
	return nil
}

func (f *fakeStore) ListSavedProducts(_ context.Context, userID string) ([]store.SavedProduct, error) {
	return f.saved[userID], nil
}

func (f *fakeStore) SaveProductName(_ context.Context, p store.SavedProduct) error {
	for _, existing := range f.saved[p.UserID] {
		if existing.Name == p.Name {
			return nil
		}
	}
	f.saved[p.UserID] = append(f.saved[p.UserID], p)
	return nil
}

func (f *fakeStore) Ping(_ context.Context) error { return nil }

// fakeSessions implements sessionStore over a map.
type fakeSessions struct {
	tokens map[string]session.TokenData
}

func (f *fakeSessions) Save(_ context.Context, tokenHash, userID, displayName string, _ time.Time) error {
	f.tokens[tokenHash] = session.TokenData{UserID: userID, DisplayName: displayName}
	return nil
}

func (f *fakeSessions) Lookup(_ context.Context, tokenHash string) (session.TokenData, error) {
	data, ok := f.tokens[tokenHash]
	if !ok {
		return session.TokenData{}, session.ErrNotFound
	}
	return data, nil
}

func (f *fakeSessions) Revoke(_ context.Context, tokenHash string) error {
	delete(f.tokens, tokenHash)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	fake := newFakeStore()
	svc := &Service{
		cfg: config.Config{
			JWTSecret:  "test-secret",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 24 * time.Hour,
		},
		store:    fake,
		sessions: &fakeSessions{tokens: map[string]session.TokenData{}},
	}
	return svc, fake
}

func loginAs(t *testing.T, svc *Service, name string) Session {
	t.Helper()
	sess, err := svc.Login(context.Background(), name)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return sess
}

func TestLoginAndSessionRoundtrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess := loginAs(t, svc, "Avery")
	if sess.Token == "" || sess.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}

	resolved, err := svc.SessionFromToken(ctx, sess.Token)
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	if resolved.UserID != sess.UserID || resolved.UserName != "Avery" {
		t.Fatalf("resolved session mismatch: %+v", resolved)
	}

	if err := svc.Logout(ctx, resolved, sess.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.SessionFromToken(ctx, sess.Token); err == nil {
		t.Fatal("expected revoked access token to be rejected")
	}
	if _, err := svc.Refresh(ctx, sess.RefreshToken); err == nil {
		t.Fatal("expected revoked refresh token to be rejected")
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess := loginAs(t, svc, "Avery")
	next, err := svc.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == sess.RefreshToken {
		t.Fatal("expected refresh token rotation")
	}
	if _, err := svc.Refresh(ctx, sess.RefreshToken); err == nil {
		t.Fatal("expected old refresh token to be revoked")
	}
}

func TestCreateBoardSeedsDefaultColumns(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()
	sess := loginAs(t, svc, "Avery")

	board, err := svc.CreateBoard(ctx, sess, CreateBoardInput{Title: "Launch"})
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	if board.Color != defaultBoardColor {
		t.Fatalf("color = %q, want %q", board.Color, defaultBoardColor)
	}

	columns, err := fake.ListColumns(ctx, board.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(columns) != len(defaultColumnTitles) {
		t.Fatalf("got %d columns, want %d", len(columns), len(defaultColumnTitles))
	}
	for i, c := range columns {
		if c.Title != defaultColumnTitles[i] {
			t.Fatalf("column %d = %q, want %q", i, c.Title, defaultColumnTitles[i])
		}
		if c.SortOrder != i {
			t.Fatalf("column %d sort order = %d", i, c.SortOrder)
		}
	}
}

func TestCreateBoardRequiresTitle(t *testing.T) {
	svc, _ := newTestService(t)
	sess := loginAs(t, svc, "Avery")

	_, err := svc.CreateBoard(context.Background(), sess, CreateBoardInput{Title: "   "})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestGetBoardViewRejectsOtherUsers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := loginAs(t, svc, "Avery")
	intruder := loginAs(t, svc, "Blake")

	board, err := svc.CreateBoard(ctx, owner, CreateBoardInput{Title: "Private"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.GetBoardView(ctx, intruder, board.ID)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestCreateTaskDefaultsToFirstColumn(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess := loginAs(t, svc, "Avery")

	board, err := svc.CreateBoard(ctx, sess, CreateBoardInput{Title: "Launch"})
	if err != nil {
		t.Fatal(err)
	}
	task, err := svc.CreateTask(ctx, sess, board.ID, CreateTaskInput{Title: "Write copy"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	view, err := svc.GetBoardView(ctx, sess, board.ID)
	if err != nil {
		t.Fatal(err)
	}
	if task.ColumnID != view.Columns[0].ID {
		t.Fatalf("task landed in %s, want first column %s", task.ColumnID, view.Columns[0].ID)
	}
	if task.Priority != store.PriorityMedium {
		t.Fatalf("priority = %q, want medium", task.Priority)
	}
}

func TestCreateTaskWithoutColumns(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()
	sess := loginAs(t, svc, "Avery")

	board, err := svc.CreateBoard(ctx, sess, CreateBoardInput{Title: "Empty"})
	if err != nil {
		t.Fatal(err)
	}
	columns, _ := fake.ListColumns(ctx, board.ID)
	for _, c := range columns {
		if err := fake.DeleteColumn(ctx, c.ID); err != nil {
			t.Fatal(err)
		}
	}

	_, err = svc.CreateTask(ctx, sess, board.ID, CreateTaskInput{Title: "Orphan"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NO_COLUMN" {
		t.Fatalf("expected NO_COLUMN, got %v", err)
	}
}

func TestDragBoardSelfDropIsNoop(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()
	sess := loginAs(t, svc, "Avery")

	board, err := svc.CreateBoard(ctx, sess, CreateBoardInput{Title: "Only"})
	if err != nil {
		t.Fatal(err)
	}

	moved, err := svc.DragBoard(ctx, sess, DragInput{ActiveID: board.ID, OverID: board.ID})
	if err != nil {
		t.Fatal(err)
	}
	if moved {
		t.Fatal("self-drop should not move")
	}
	if fake.reorderBoardCalls != 0 {
		t.Fatalf("reorder was persisted %d times", fake.reorderBoardCalls)
	}
}

func TestDragBoardReorders(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess := loginAs(t, svc, "Avery")

	first, _ := svc.CreateBoard(ctx, sess, CreateBoardInput{Title: "First"})
	second, _ := svc.CreateBoard(ctx, sess, CreateBoardInput{Title: "Second"})
	third, _ := svc.CreateBoard(ctx, sess, CreateBoardInput{Title: "Third"})

	moved, err := svc.DragBoard(ctx, sess, DragInput{ActiveID: first.ID, OverID: third.ID})
	if err != nil {
		t.Fatal(err)
	}
	if !moved {
		t.Fatal("expected a move")
	}

	boards, err := svc.ListBoards(ctx, sess, filter.BoardFilter{})
	if err != nil {
		t.Fatal(err)
	}
	got := []string{boards[0].ID, boards[1].ID, boards[2].ID}
	want := []string{second.ID, third.ID, first.ID}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestDragTaskPersistsMove(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()
	sess := loginAs(t, svc, "Avery")

	board, _ := svc.CreateBoard(ctx, sess, CreateBoardInput{Title: "Launch"})
	first, _ := svc.CreateTask(ctx, sess, board.ID, CreateTaskInput{Title: "one"})
	second, _ := svc.CreateTask(ctx, sess, board.ID, CreateTaskInput{Title: "two"})

	moved, err := svc.DragTask(ctx, sess, board.ID, DragInput{ActiveID: first.ID, OverID: second.ID})
	if err != nil {
		t.Fatal(err)
	}
	if !moved {
		t.Fatal("expected a move")
	}
	if len(fake.moveTaskCalls) != 1 || fake.moveTaskCalls[0] != first.ID {
		t.Fatalf("persisted moves = %v", fake.moveTaskCalls)
	}
}

func TestDragTaskReloadsOnPersistFailure(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()
	sess := loginAs(t, svc, "Avery")

	board, _ := svc.CreateBoard(ctx, sess, CreateBoardInput{Title: "Launch"})
	first, _ := svc.CreateTask(ctx, sess, board.ID, CreateTaskInput{Title: "one"})
	second, _ := svc.CreateTask(ctx, sess, board.ID, CreateTaskInput{Title: "two"})

	fake.moveTaskErr = errors.New("connection reset")
	if _, err := svc.DragTask(ctx, sess, board.ID, DragInput{ActiveID: first.ID, OverID: second.ID}); err == nil {
		t.Fatal("expected persistence error to surface")
	}

	view, err := svc.GetBoardView(ctx, sess, board.ID)
	if err != nil {
		t.Fatal(err)
	}
	tasks := view.Columns[0].Tasks
	if tasks[0].ID != first.ID || tasks[1].ID != second.ID {
		t.Fatal("stored order should be untouched after a failed move")
	}
}

func TestReplaceProductsDerivesBoardFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess := loginAs(t, svc, "Avery")

	board, err := svc.CreateBoard(ctx, sess, CreateBoardInput{Title: "Hosting"})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.ReplaceProducts(ctx, sess, board.ID, []ProductInput{
		{Name: "Domain", StartedDate: "2024-03-10", Period: 1, Price: 20},
		{Name: "Server", StartedDate: "2024-03-10", Period: 0.5, Price: 60},
	})
	if err != nil {
		t.Fatalf("replace products: %v", err)
	}
	if want := 20.0 + 60.0/0.5; updated.Annual != want {
		t.Fatalf("annual = %v, want %v", updated.Annual, want)
	}
	if updated.EndingDate == nil {
		t.Fatal("expected a derived ending date")
	}
	if !updated.EndingDate.After(time.Now().AddDate(0, 0, -1)) {
		t.Fatalf("ending date %v should not be in the past", updated.EndingDate)
	}

	saved, err := svc.ListSavedProducts(ctx, sess)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 2 {
		t.Fatalf("saved %d product names, want 2", len(saved))
	}

	// Replacing again with one product clears the other and keeps the
	// autocomplete entries.
	updated, err = svc.ReplaceProducts(ctx, sess, board.ID, []ProductInput{
		{Name: "Domain", StartedDate: "2024-03-10", Period: 1, Price: 20},
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Annual != 20 {
		t.Fatalf("annual = %v, want 20", updated.Annual)
	}
	saved, _ = svc.ListSavedProducts(ctx, sess)
	if len(saved) != 2 {
		t.Fatalf("saved names shrank to %d", len(saved))
	}
}

func TestReplaceProductsRejectsBadPeriod(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess := loginAs(t, svc, "Avery")

	board, _ := svc.CreateBoard(ctx, sess, CreateBoardInput{Title: "Hosting"})
	_, err := svc.ReplaceProducts(ctx, sess, board.ID, []ProductInput{
		{Name: "Domain", StartedDate: "2024-03-10", Period: 1.5, Price: 20},
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestSetBoardLabelsValidatesOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := loginAs(t, svc, "Avery")
	other := loginAs(t, svc, "Blake")

	board, _ := svc.CreateBoard(ctx, owner, CreateBoardInput{Title: "Launch"})
	mine, err := svc.CreateLabel(ctx, owner, CreateLabelInput{Text: "urgent"})
	if err != nil {
		t.Fatal(err)
	}
	theirs, err := svc.CreateLabel(ctx, other, CreateLabelInput{Text: "urgent"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.SetBoardLabels(ctx, owner, board.ID, []string{theirs.ID}); err == nil {
		t.Fatal("expected a foreign label to be rejected")
	}
	labels, err := svc.SetBoardLabels(ctx, owner, board.ID, []string{mine.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(labels) != 1 || labels[0].ID != mine.ID {
		t.Fatalf("board labels = %+v", labels)
	}
}

func TestViewModeDefaultsWithoutStore(t *testing.T) {
	svc, _ := newTestService(t)
	sess := loginAs(t, svc, "Avery")

	mode, err := svc.ViewMode(context.Background(), sess)
	if err != nil {
		t.Fatal(err)
	}
	if mode != "cards" {
		t.Fatalf("mode = %q, want cards", mode)
	}
	if err := svc.SetViewMode(context.Background(), sess, "table"); err == nil {
		t.Fatal("expected PREFS_UNAVAILABLE without a preference store")
	}
}

func TestBootstrapSeedsOnce(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	if err := svc.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if len(fake.boards) != 1 {
		t.Fatalf("seeded %d boards, want 1", len(fake.boards))
	}
	if err := svc.Bootstrap(ctx); err != nil {
		t.Fatal(err)
	}
	if len(fake.boards) != 1 {
		t.Fatal("bootstrap must not seed twice")
	}
}
