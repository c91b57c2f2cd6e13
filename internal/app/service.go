package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/boardstate"
	"taskboard/api/internal/config"
	"taskboard/api/internal/derive"
	"taskboard/api/internal/extauth"
	"taskboard/api/internal/filter"
	"taskboard/api/internal/order"
	"taskboard/api/internal/prefs"
	"taskboard/api/internal/search"
	"taskboard/api/internal/session"
	"taskboard/api/internal/store"
	"taskboard/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

type CreateBoardInput struct {
	Title string `json:"title"`
	Color string `json:"color"`
}

type UpdateBoardInput struct {
	Title         *string  `json:"title"`
	Color         *string  `json:"color"`
	Notes         *string  `json:"notes"`
	StartedDate   *string  `json:"startedDate"`
	TotalValue    *float64 `json:"totalValue"`
	UpcomingValue *float64 `json:"upcomingValue"`
	ReceivedValue *float64 `json:"receivedValue"`
}

type CreateColumnInput struct {
	Title string `json:"title"`
}

type CreateTaskInput struct {
	ColumnID    string `json:"columnId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Assignee    string `json:"assignee"`
	DueDate     string `json:"dueDate"`
	Priority    string `json:"priority"`
}

type UpdateTaskInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Assignee    *string `json:"assignee"`
	DueDate     *string `json:"dueDate"`
	Priority    *string `json:"priority"`
}

type CreateLabelInput struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

type ProductInput struct {
	Name        string  `json:"name"`
	StartedDate string  `json:"startedDate"`
	Period      float64 `json:"period"`
	Price       float64 `json:"price"`
	Cost        float64 `json:"cost"`
}

type DragInput struct {
	ActiveID string `json:"activeId"`
	OverID   string `json:"overId"`
}

type BoardView struct {
	Board   store.Board
	Columns []store.ColumnWithTasks
}

const defaultBoardColor = "bg-blue-500"

// Columns every new board starts with.
var defaultColumnTitles = []string{"To Do", "In Progress", "Review", "Done"}

type dataStore interface {
	EnsureUserByName(ctx context.Context, name string) (store.User, error)
	EnsureUserByProvider(ctx context.Context, provider, subject, email, name string) (store.User, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)

	ListBoards(ctx context.Context, userID string) ([]store.Board, error)
	GetBoard(ctx context.Context, boardID string) (store.Board, error)
	InsertBoard(ctx context.Context, b store.Board) error
	MaxBoardSortOrder(ctx context.Context, userID string) (int, error)
	UpdateBoardFields(ctx context.Context, boardID, userID string, updates store.BoardFieldUpdates) error
	DeleteBoard(ctx context.Context, boardID, userID string) error
	ReorderBoards(ctx context.Context, userID string, updates []store.SortUpdate) error
	BoardOwner(ctx context.Context, boardID string) (string, error)

	ListColumns(ctx context.Context, boardID string) ([]store.Column, error)
	ListColumnsWithTasks(ctx context.Context, boardID string) ([]store.ColumnWithTasks, error)
	InsertColumn(ctx context.Context, c store.Column) error
	MaxColumnSortOrder(ctx context.Context, boardID string) (int, error)
	RenameColumn(ctx context.Context, columnID, title string) error
	DeleteColumn(ctx context.Context, columnID string) error
	ReorderColumns(ctx context.Context, boardID string, updates []store.SortUpdate) error
	ColumnBoard(ctx context.Context, columnID string) (string, error)

	GetTask(ctx context.Context, taskID string) (store.Task, error)
	InsertTask(ctx context.Context, t store.Task) error
	MaxTaskSortOrder(ctx context.Context, columnID string) (int, error)
	UpdateTask(ctx context.Context, taskID string, updates store.TaskUpdates) error
	DeleteTask(ctx context.Context, taskID string) error
	MoveTask(ctx context.Context, taskID, targetColumnID string, index int) error
	TaskBoard(ctx context.Context, taskID string) (string, error)

	ListLabels(ctx context.Context, userID string) ([]store.Label, error)
	InsertLabel(ctx context.Context, l store.Label) error
	DeleteLabel(ctx context.Context, labelID, userID string) error
	SetBoardLabels(ctx context.Context, boardID string, labelIDs []string) error
	ListBoardLabels(ctx context.Context, boardID string) ([]store.Label, error)

	ListProducts(ctx context.Context, boardID string) ([]store.Product, error)
	ReplaceProducts(ctx context.Context, boardID string, products []store.Product, annual float64, endingDate *time.Time) error
	ListSavedProducts(ctx context.Context, userID string) ([]store.SavedProduct, error)
	SaveProductName(ctx context.Context, p store.SavedProduct) error

	Ping(ctx context.Context) error
}

// sessionStore abstracts refresh-token storage. Redis is the primary
// backend; Postgres serves when Redis is not configured.
type sessionStore interface {
	Save(ctx context.Context, tokenHash, userID, displayName string, expiresAt time.Time) error
	Lookup(ctx context.Context, tokenHash string) (session.TokenData, error)
	Revoke(ctx context.Context, tokenHash string) error
}

type pgSessions struct {
	store dataStore
}

func (p pgSessions) Save(ctx context.Context, tokenHash, userID, _ string, expiresAt time.Time) error {
	return p.store.SaveRefreshSession(ctx, tokenHash, userID, expiresAt)
}

func (p pgSessions) Lookup(ctx context.Context, tokenHash string) (session.TokenData, error) {
	user, err := p.store.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return session.TokenData{}, err
	}
	return session.TokenData{UserID: user.ID, DisplayName: user.DisplayName}, nil
}

func (p pgSessions) Revoke(ctx context.Context, tokenHash string) error {
	return p.store.RevokeRefreshSession(ctx, tokenHash)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	verifier *extauth.Verifier
	search   *search.Service
	prefs    *prefs.Store
	hub      *Hub
}

func New(cfg config.Config, dataStore *store.PostgresStore, searchService *search.Service, verifier *extauth.Verifier, prefStore *prefs.Store, hub *Hub) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: pgSessions{store: dataStore},
		verifier: verifier,
		search:   searchService,
		prefs:    prefStore,
		hub:      hub,
	}
}

// NewWithSessionStore is New with refresh sessions held in Redis.
func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions *session.RedisStore, searchService *search.Service, verifier *extauth.Verifier, prefStore *prefs.Store, hub *Hub) *Service {
	service := New(cfg, dataStore, searchService, verifier, prefStore, hub)
	service.sessions = sessions
	return service
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) publish(userID, eventType, boardID string) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(Event{Type: eventType, BoardID: boardID, UserID: userID})
}

// Bootstrap seeds a demo user with one example board so a fresh install
// has something to show. Does nothing once any board exists.
func (s *Service) Bootstrap(ctx context.Context) error {
	owner, err := s.store.EnsureUserByName(ctx, "Avery")
	if err != nil {
		return err
	}
	boards, err := s.store.ListBoards(ctx, owner.ID)
	if err != nil {
		return err
	}
	if len(boards) > 0 {
		return nil
	}

	sess := Session{UserID: owner.ID, UserName: owner.DisplayName}
	board, err := s.CreateBoard(ctx, sess, CreateBoardInput{Title: "Website Redesign", Color: "bg-purple-500"})
	if err != nil {
		return err
	}

	columns, err := s.store.ListColumns(ctx, board.ID)
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		return nil
	}

	seeds := []CreateTaskInput{
		{ColumnID: columns[0].ID, Title: "Audit current landing page", Priority: store.PriorityHigh},
		{ColumnID: columns[0].ID, Title: "Collect brand assets", Priority: store.PriorityMedium},
		{ColumnID: columns[1].ID, Title: "Draft new hero section", Assignee: "Avery", Priority: store.PriorityMedium},
	}
	for _, seed := range seeds {
		if _, err := s.CreateTask(ctx, sess, board.ID, seed); err != nil {
			return err
		}
	}
	return nil
}

// --- sessions ---

func (s *Service) Login(ctx context.Context, name string) (Session, error) {
	userName := strings.TrimSpace(name)
	if userName == "" {
		userName = "User"
	}
	user, err := s.store.EnsureUserByName(ctx, userName)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// ExchangeToken turns an upstream provider token into a local session.
func (s *Service) ExchangeToken(ctx context.Context, providerToken string) (Session, error) {
	if s.verifier == nil || !s.verifier.Enabled() {
		return Session{}, domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "External authentication is not configured", nil)
	}
	identity, err := s.verifier.Verify(ctx, providerToken)
	if err != nil {
		if errors.Is(err, extauth.ErrTokenRejected) {
			return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Provider rejected the token", nil)
		}
		return Session{}, domainError(http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Authentication provider unavailable", nil)
	}
	user, err := s.store.EnsureUserByProvider(ctx, "oauth", identity.Subject, identity.Email, identity.Name)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	data, err := s.sessions.Lookup(ctx, tokenHash)
	if err != nil {
		return Session{}, auth.ErrInvalidToken
	}
	user, err := s.store.GetUserByID(ctx, data.UserID)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.Revoke(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.DisplayName, jti, s.cfg.AccessTTL)
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.Save(ctx, auth.HashToken(refresh), user.ID, user.DisplayName, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) Logout(ctx context.Context, sess Session, refreshToken string) error {
	if sess.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, sess.JTI, sess.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.Revoke(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// --- boards ---

func (s *Service) ListBoards(ctx context.Context, sess Session, f filter.BoardFilter) ([]store.Board, error) {
	boards, err := s.store.ListBoards(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	return filter.Boards(boards, f), nil
}

func (s *Service) CreateBoard(ctx context.Context, sess Session, input CreateBoardInput) (store.Board, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return store.Board{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	color := strings.TrimSpace(input.Color)
	if color == "" {
		color = defaultBoardColor
	}

	maxSort, err := s.store.MaxBoardSortOrder(ctx, sess.UserID)
	if err != nil {
		return store.Board{}, err
	}

	board := store.Board{
		ID:        util.NewID("brd"),
		UserID:    sess.UserID,
		Title:     title,
		Color:     color,
		SortOrder: maxSort + 1,
		Labels:    []store.Label{},
		Products:  []store.Product{},
	}
	if err := s.store.InsertBoard(ctx, board); err != nil {
		return store.Board{}, err
	}

	for i, columnTitle := range defaultColumnTitles {
		err := s.store.InsertColumn(ctx, store.Column{
			ID:        util.NewID("col"),
			BoardID:   board.ID,
			Title:     columnTitle,
			SortOrder: i,
		})
		if err != nil {
			return store.Board{}, err
		}
	}

	if s.search != nil {
		s.search.IndexBoard(search.BoardRecord{ID: board.ID, Title: board.Title, UserID: sess.UserID})
	}
	s.publish(sess.UserID, "board.created", board.ID)
	return s.store.GetBoard(ctx, board.ID)
}

// GetBoardView returns a board with its full column and task layout.
func (s *Service) GetBoardView(ctx context.Context, sess Session, boardID string) (BoardView, error) {
	board, err := s.requireBoard(ctx, sess, boardID)
	if err != nil {
		return BoardView{}, err
	}
	columns, err := s.store.ListColumnsWithTasks(ctx, boardID)
	if err != nil {
		return BoardView{}, err
	}
	labels, err := s.store.ListBoardLabels(ctx, boardID)
	if err != nil {
		return BoardView{}, err
	}
	products, err := s.store.ListProducts(ctx, boardID)
	if err != nil {
		return BoardView{}, err
	}
	board.Labels = labels
	board.Products = products
	return BoardView{Board: board, Columns: columns}, nil
}

func (s *Service) UpdateBoard(ctx context.Context, sess Session, boardID string, input UpdateBoardInput) (store.Board, error) {
	if _, err := s.requireBoard(ctx, sess, boardID); err != nil {
		return store.Board{}, err
	}

	updates := store.BoardFieldUpdates{
		Color:         input.Color,
		Notes:         input.Notes,
		TotalValue:    input.TotalValue,
		UpcomingValue: input.UpcomingValue,
		ReceivedValue: input.ReceivedValue,
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return store.Board{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title cannot be empty", nil)
		}
		updates.Title = &title
	}
	if input.StartedDate != nil {
		if *input.StartedDate == "" {
			updates.ClearStarted = true
		} else {
			started, err := parseDate(*input.StartedDate)
			if err != nil {
				return store.Board{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "startedDate must be YYYY-MM-DD", nil)
			}
			updates.StartedDate = &started
		}
	}

	if err := s.store.UpdateBoardFields(ctx, boardID, sess.UserID, updates); err != nil {
		return store.Board{}, err
	}

	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return store.Board{}, err
	}
	if s.search != nil && (input.Title != nil || input.Notes != nil) {
		s.search.IndexBoard(search.BoardRecord{ID: board.ID, Title: board.Title, Notes: board.Notes, UserID: sess.UserID})
	}
	s.publish(sess.UserID, "board.updated", boardID)
	return board, nil
}

func (s *Service) DeleteBoard(ctx context.Context, sess Session, boardID string) error {
	if _, err := s.requireBoard(ctx, sess, boardID); err != nil {
		return err
	}
	if err := s.store.DeleteBoard(ctx, boardID, sess.UserID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteBoard(boardID)
	}
	s.publish(sess.UserID, "board.deleted", boardID)
	return nil
}

// DragBoard reorders the user's board list in response to a drag gesture.
// Dropping a board on its own position is a no-op and persists nothing.
func (s *Service) DragBoard(ctx context.Context, sess Session, input DragInput) (bool, error) {
	boards, err := s.store.ListBoards(ctx, sess.UserID)
	if err != nil {
		return false, err
	}
	ids := make([]string, len(boards))
	for i, b := range boards {
		ids[i] = b.ID
	}
	positions, ok := order.ResolveFlat(input.ActiveID, input.OverID, ids)
	if !ok {
		return false, nil
	}
	updates := make([]store.SortUpdate, len(positions))
	for i, p := range positions {
		updates[i] = store.SortUpdate{ID: p.ID, SortOrder: p.Index}
	}
	if err := s.store.ReorderBoards(ctx, sess.UserID, updates); err != nil {
		return false, err
	}
	s.publish(sess.UserID, "boards.reordered", "")
	return true, nil
}

// --- columns ---

func (s *Service) CreateColumn(ctx context.Context, sess Session, boardID string, input CreateColumnInput) (store.Column, error) {
	if _, err := s.requireBoard(ctx, sess, boardID); err != nil {
		return store.Column{}, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return store.Column{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	maxSort, err := s.store.MaxColumnSortOrder(ctx, boardID)
	if err != nil {
		return store.Column{}, err
	}
	column := store.Column{
		ID:        util.NewID("col"),
		BoardID:   boardID,
		Title:     title,
		SortOrder: maxSort + 1,
	}
	if err := s.store.InsertColumn(ctx, column); err != nil {
		return store.Column{}, err
	}
	s.publish(sess.UserID, "column.created", boardID)
	return column, nil
}

func (s *Service) RenameColumn(ctx context.Context, sess Session, columnID, title string) error {
	boardID, err := s.requireColumn(ctx, sess, columnID)
	if err != nil {
		return err
	}
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if err := s.store.RenameColumn(ctx, columnID, trimmed); err != nil {
		return err
	}
	s.publish(sess.UserID, "column.updated", boardID)
	return nil
}

func (s *Service) DeleteColumn(ctx context.Context, sess Session, columnID string) error {
	boardID, err := s.requireColumn(ctx, sess, columnID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteColumn(ctx, columnID); err != nil {
		return err
	}
	s.publish(sess.UserID, "column.deleted", boardID)
	return nil
}

// DragColumn reorders a board's columns in response to a drag gesture.
func (s *Service) DragColumn(ctx context.Context, sess Session, boardID string, input DragInput) (bool, error) {
	if _, err := s.requireBoard(ctx, sess, boardID); err != nil {
		return false, err
	}
	state, err := s.boardState(ctx, boardID)
	if err != nil {
		return false, err
	}
	moved, err := state.ApplyColumnDrag(ctx, input.ActiveID, input.OverID)
	if err != nil {
		return false, err
	}
	if moved {
		s.publish(sess.UserID, "columns.reordered", boardID)
	}
	return moved, nil
}

// --- tasks ---

func (s *Service) CreateTask(ctx context.Context, sess Session, boardID string, input CreateTaskInput) (store.Task, error) {
	if _, err := s.requireBoard(ctx, sess, boardID); err != nil {
		return store.Task{}, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return store.Task{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}

	columnID := input.ColumnID
	if columnID == "" {
		columns, err := s.store.ListColumns(ctx, boardID)
		if err != nil {
			return store.Task{}, err
		}
		if len(columns) == 0 {
			return store.Task{}, domainError(http.StatusUnprocessableEntity, "NO_COLUMN", "No column found", nil)
		}
		columnID = columns[0].ID
	} else {
		columnBoard, err := s.store.ColumnBoard(ctx, columnID)
		if err != nil {
			return store.Task{}, err
		}
		if columnBoard != boardID {
			return store.Task{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "column does not belong to board", nil)
		}
	}

	priority := input.Priority
	if priority == "" {
		priority = store.PriorityMedium
	}
	if !store.ValidPriority(priority) {
		return store.Task{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "priority must be low, medium or high", nil)
	}

	var dueDate *time.Time
	if input.DueDate != "" {
		due, err := parseDate(input.DueDate)
		if err != nil {
			return store.Task{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "dueDate must be YYYY-MM-DD", nil)
		}
		dueDate = &due
	}

	maxSort, err := s.store.MaxTaskSortOrder(ctx, columnID)
	if err != nil {
		return store.Task{}, err
	}

	task := store.Task{
		ID:          util.NewID("tsk"),
		ColumnID:    columnID,
		Title:       title,
		Description: input.Description,
		Assignee:    input.Assignee,
		DueDate:     dueDate,
		Priority:    priority,
		SortOrder:   maxSort + 1,
	}
	if err := s.store.InsertTask(ctx, task); err != nil {
		return store.Task{}, err
	}

	if s.search != nil {
		s.search.IndexTask(search.TaskRecord{
			ID:          task.ID,
			Title:       task.Title,
			Description: task.Description,
			BoardID:     boardID,
			UserID:      sess.UserID,
		})
	}
	s.publish(sess.UserID, "task.created", boardID)
	return task, nil
}

func (s *Service) UpdateTask(ctx context.Context, sess Session, taskID string, input UpdateTaskInput) (store.Task, error) {
	boardID, err := s.requireTask(ctx, sess, taskID)
	if err != nil {
		return store.Task{}, err
	}

	updates := store.TaskUpdates{
		Description: input.Description,
		Assignee:    input.Assignee,
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return store.Task{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title cannot be empty", nil)
		}
		updates.Title = &title
	}
	if input.Priority != nil {
		if !store.ValidPriority(*input.Priority) {
			return store.Task{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "priority must be low, medium or high", nil)
		}
		updates.Priority = input.Priority
	}
	if input.DueDate != nil {
		if *input.DueDate == "" {
			updates.ClearDue = true
		} else {
			due, err := parseDate(*input.DueDate)
			if err != nil {
				return store.Task{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "dueDate must be YYYY-MM-DD", nil)
			}
			updates.DueDate = &due
		}
	}

	if err := s.store.UpdateTask(ctx, taskID, updates); err != nil {
		return store.Task{}, err
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return store.Task{}, err
	}
	if s.search != nil && (input.Title != nil || input.Description != nil) {
		s.search.IndexTask(search.TaskRecord{
			ID:          task.ID,
			Title:       task.Title,
			Description: task.Description,
			BoardID:     boardID,
			UserID:      sess.UserID,
		})
	}
	s.publish(sess.UserID, "task.updated", boardID)
	return task, nil
}

func (s *Service) DeleteTask(ctx context.Context, sess Session, taskID string) error {
	boardID, err := s.requireTask(ctx, sess, taskID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteTask(taskID)
	}
	s.publish(sess.UserID, "task.deleted", boardID)
	return nil
}

// MoveTask places a task into a column at an explicit index.
func (s *Service) MoveTask(ctx context.Context, sess Session, taskID, targetColumnID string, index int) error {
	boardID, err := s.requireTask(ctx, sess, taskID)
	if err != nil {
		return err
	}
	targetBoard, err := s.store.ColumnBoard(ctx, targetColumnID)
	if err != nil {
		return err
	}
	if targetBoard != boardID {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "target column belongs to a different board", nil)
	}
	if err := s.store.MoveTask(ctx, taskID, targetColumnID, index); err != nil {
		return err
	}
	s.publish(sess.UserID, "task.moved", boardID)
	return nil
}

// DragTask resolves a drag gesture against the board's current layout and
// persists the resulting move. Dropping a task where it already sits makes
// no persistence call.
func (s *Service) DragTask(ctx context.Context, sess Session, boardID string, input DragInput) (bool, error) {
	if _, err := s.requireBoard(ctx, sess, boardID); err != nil {
		return false, err
	}
	state, err := s.boardState(ctx, boardID)
	if err != nil {
		return false, err
	}
	moved, err := state.ApplyTaskDrag(ctx, input.ActiveID, input.OverID)
	if err != nil {
		return false, err
	}
	if moved {
		s.publish(sess.UserID, "task.moved", boardID)
	}
	return moved, nil
}

func (s *Service) boardState(ctx context.Context, boardID string) (*boardstate.Store, error) {
	columns, err := s.store.ListColumnsWithTasks(ctx, boardID)
	if err != nil {
		return nil, err
	}
	adapter := storeAdapter{store: s.store}
	return boardstate.New(boardID, columns, adapter, adapter), nil
}

// storeAdapter exposes the data store as the reconciler's persister and
// loader.
type storeAdapter struct {
	store dataStore
}

func (a storeAdapter) MoveTask(ctx context.Context, taskID, columnID string, index int) error {
	return a.store.MoveTask(ctx, taskID, columnID, index)
}

func (a storeAdapter) ReorderColumns(ctx context.Context, boardID string, updates []store.SortUpdate) error {
	return a.store.ReorderColumns(ctx, boardID, updates)
}

func (a storeAdapter) LoadColumns(ctx context.Context, boardID string) ([]store.ColumnWithTasks, error) {
	return a.store.ListColumnsWithTasks(ctx, boardID)
}

// --- labels ---

func (s *Service) ListLabels(ctx context.Context, sess Session) ([]store.Label, error) {
	return s.store.ListLabels(ctx, sess.UserID)
}

func (s *Service) CreateLabel(ctx context.Context, sess Session, input CreateLabelInput) (store.Label, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return store.Label{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil)
	}
	color := strings.TrimSpace(input.Color)
	if color == "" {
		color = defaultBoardColor
	}
	label := store.Label{
		ID:     util.NewID("lbl"),
		UserID: sess.UserID,
		Text:   text,
		Color:  color,
	}
	if err := s.store.InsertLabel(ctx, label); err != nil {
		return store.Label{}, err
	}
	return label, nil
}

func (s *Service) DeleteLabel(ctx context.Context, sess Session, labelID string) error {
	return s.store.DeleteLabel(ctx, labelID, sess.UserID)
}

// SetBoardLabels replaces a board's label assignments. Every label must
// belong to the caller.
func (s *Service) SetBoardLabels(ctx context.Context, sess Session, boardID string, labelIDs []string) ([]store.Label, error) {
	if _, err := s.requireBoard(ctx, sess, boardID); err != nil {
		return nil, err
	}
	owned, err := s.store.ListLabels(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	ownedSet := make(map[string]bool, len(owned))
	for _, l := range owned {
		ownedSet[l.ID] = true
	}
	for _, id := range labelIDs {
		if !ownedSet[id] {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown label "+id, nil)
		}
	}
	if err := s.store.SetBoardLabels(ctx, boardID, labelIDs); err != nil {
		return nil, err
	}
	s.publish(sess.UserID, "board.updated", boardID)
	return s.store.ListBoardLabels(ctx, boardID)
}

// --- products ---

func (s *Service) ListProducts(ctx context.Context, sess Session, boardID string) ([]store.Product, error) {
	if _, err := s.requireBoard(ctx, sess, boardID); err != nil {
		return nil, err
	}
	return s.store.ListProducts(ctx, boardID)
}

// ReplaceProducts swaps a board's product set and recomputes the derived
// annual total and next ending date in the same write.
func (s *Service) ReplaceProducts(ctx context.Context, sess Session, boardID string, inputs []ProductInput) (store.Board, error) {
	if _, err := s.requireBoard(ctx, sess, boardID); err != nil {
		return store.Board{}, err
	}

	products := make([]store.Product, 0, len(inputs))
	derived := make([]derive.Product, 0, len(inputs))
	for _, input := range inputs {
		name := strings.TrimSpace(input.Name)
		if name == "" {
			return store.Board{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "product name is required", nil)
		}
		if !store.ValidPeriod(input.Period) {
			return store.Board{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "period must be 0.5, 1, 2 or 3", nil)
		}
		started, err := parseDate(input.StartedDate)
		if err != nil {
			return store.Board{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "startedDate must be YYYY-MM-DD", nil)
		}
		products = append(products, store.Product{
			ID:          util.NewID("prd"),
			BoardID:     boardID,
			Name:        name,
			StartedDate: started,
			Period:      input.Period,
			Price:       input.Price,
			Cost:        input.Cost,
		})
		derived = append(derived, derive.Product{
			StartedDate: started,
			Period:      input.Period,
			Price:       input.Price,
			Cost:        input.Cost,
		})
	}

	annual := derive.Annual(derived)
	endingDate := derive.EndingDate(derived, derive.Today(time.Now()))

	if err := s.store.ReplaceProducts(ctx, boardID, products, annual, endingDate); err != nil {
		return store.Board{}, err
	}
	for _, p := range products {
		_ = s.store.SaveProductName(ctx, store.SavedProduct{
			ID:     util.NewID("svp"),
			UserID: sess.UserID,
			Name:   p.Name,
		})
	}

	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return store.Board{}, err
	}
	board.Products = products
	s.publish(sess.UserID, "board.updated", boardID)
	return board, nil
}

func (s *Service) ListSavedProducts(ctx context.Context, sess Session) ([]store.SavedProduct, error) {
	return s.store.ListSavedProducts(ctx, sess.UserID)
}

// --- preferences ---

func (s *Service) ViewMode(ctx context.Context, sess Session) (string, error) {
	if s.prefs == nil {
		return prefs.ViewModeCards, nil
	}
	return s.prefs.ViewMode(ctx, sess.UserID)
}

func (s *Service) SetViewMode(ctx context.Context, sess Session, mode string) error {
	if !prefs.ValidViewMode(mode) {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "viewMode must be cards or table", nil)
	}
	if s.prefs == nil {
		return domainError(http.StatusServiceUnavailable, "PREFS_UNAVAILABLE", "Preference storage is not configured", nil)
	}
	return s.prefs.SetViewMode(ctx, sess.UserID, mode)
}

// --- search ---

func (s *Service) Search(ctx context.Context, sess Session, text string, filterType search.ResultType, limit, offset int) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}
	}
	return s.search.Search(search.Query{
		Text:       text,
		UserID:     sess.UserID,
		FilterType: filterType,
		Limit:      limit,
		Offset:     offset,
	})
}

// --- ownership checks ---

func (s *Service) requireBoard(ctx context.Context, sess Session, boardID string) (store.Board, error) {
	board, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return store.Board{}, err
	}
	if board.UserID != sess.UserID {
		return store.Board{}, domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	}
	return board, nil
}

func (s *Service) requireColumn(ctx context.Context, sess Session, columnID string) (string, error) {
	boardID, err := s.store.ColumnBoard(ctx, columnID)
	if err != nil {
		return "", err
	}
	if _, err := s.requireBoard(ctx, sess, boardID); err != nil {
		return "", err
	}
	return boardID, nil
}

func (s *Service) requireTask(ctx context.Context, sess Session, taskID string) (string, error) {
	boardID, err := s.store.TaskBoard(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sql.ErrNoRows
		}
		return "", err
	}
	if _, err := s.requireBoard(ctx, sess, boardID); err != nil {
		return "", err
	}
	return boardID, nil
}

func parseDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}
