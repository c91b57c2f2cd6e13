package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/derive"
	"taskboard/api/internal/filter"
	"taskboard/api/internal/logging"
	"taskboard/api/internal/search"
	"taskboard/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	upgrader   websocket.Upgrader
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *HTTPServer) Handler() http.Handler {
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)

	api.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	api.HandleFunc("/session/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/session/exchange", s.handleExchange).Methods(http.MethodPost)
	api.HandleFunc("/session/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/session/logout", s.handleLogout).Methods(http.MethodPost)

	api.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	protected := api.NewRoute().Subrouter()
	protected.Use(s.requireSession)

	protected.HandleFunc("/boards", s.handleListBoards).Methods(http.MethodGet)
	protected.HandleFunc("/boards", s.handleCreateBoard).Methods(http.MethodPost)
	protected.HandleFunc("/boards/reorder", s.handleDragBoard).Methods(http.MethodPost)
	protected.HandleFunc("/boards/{boardID}", s.handleGetBoard).Methods(http.MethodGet)
	protected.HandleFunc("/boards/{boardID}", s.handleUpdateBoard).Methods(http.MethodPatch)
	protected.HandleFunc("/boards/{boardID}", s.handleDeleteBoard).Methods(http.MethodDelete)

	protected.HandleFunc("/boards/{boardID}/columns", s.handleCreateColumn).Methods(http.MethodPost)
	protected.HandleFunc("/boards/{boardID}/columns/reorder", s.handleDragColumn).Methods(http.MethodPost)
	protected.HandleFunc("/columns/{columnID}", s.handleRenameColumn).Methods(http.MethodPatch)
	protected.HandleFunc("/columns/{columnID}", s.handleDeleteColumn).Methods(http.MethodDelete)

	protected.HandleFunc("/boards/{boardID}/tasks", s.handleCreateTask).Methods(http.MethodPost)
	protected.HandleFunc("/boards/{boardID}/tasks/reorder", s.handleDragTask).Methods(http.MethodPost)
	protected.HandleFunc("/tasks/{taskID}", s.handleUpdateTask).Methods(http.MethodPatch)
	protected.HandleFunc("/tasks/{taskID}", s.handleDeleteTask).Methods(http.MethodDelete)
	protected.HandleFunc("/tasks/{taskID}/move", s.handleMoveTask).Methods(http.MethodPost)

	protected.HandleFunc("/labels", s.handleListLabels).Methods(http.MethodGet)
	protected.HandleFunc("/labels", s.handleCreateLabel).Methods(http.MethodPost)
	protected.HandleFunc("/labels/{labelID}", s.handleDeleteLabel).Methods(http.MethodDelete)
	protected.HandleFunc("/boards/{boardID}/labels", s.handleSetBoardLabels).Methods(http.MethodPut)

	protected.HandleFunc("/boards/{boardID}/products", s.handleListProducts).Methods(http.MethodGet)
	protected.HandleFunc("/boards/{boardID}/products", s.handleReplaceProducts).Methods(http.MethodPut)
	protected.HandleFunc("/saved-products", s.handleListSavedProducts).Methods(http.MethodGet)

	protected.HandleFunc("/preferences/view-mode", s.handleGetViewMode).Methods(http.MethodGet)
	protected.HandleFunc("/preferences/view-mode", s.handleSetViewMode).Methods(http.MethodPut)

	protected.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{s.corsOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
	})
	return s.withRequestLog(corsMiddleware.Handler(router))
}

// --- middleware ---

type sessionKey struct{}
type requestIDKey struct{}

func (s *HTTPServer) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID))

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		logging.Logger.WithFields(map[string]any{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      writer.status,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("request")
	})
}

func (s *HTTPServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		sess, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionFrom(r *http.Request) Session {
	sess, _ := r.Context().Value(sessionKey{}).(Session)
	return sess
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// --- health ---

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}
	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{"status": "error", "error": err.Error()}
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// --- sessions ---

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
		return
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "userName": sess.UserName, "userId": sess.UserID})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	sess, err := s.service.Login(r.Context(), body.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "LOGIN_FAILED", "Login failed", nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(sess))
}

func (s *HTTPServer) handleExchange(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if strings.TrimSpace(body.Token) == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "token is required", nil)
		return
	}
	sess, err := s.service.ExchangeToken(r.Context(), body.Token)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(sess))
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	sess, err := s.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(sess))
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := Session{}
	if token := bearerToken(r); token != "" {
		if parsed, err := s.service.SessionFromToken(r.Context(), token); err == nil {
			sess = parsed
		}
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = decodeBody(r, &body)
	_ = s.service.Logout(r.Context(), sess, body.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleWebSocket upgrades the connection and attaches it to the event
// hub. The token travels as a query parameter because browser WebSocket
// clients cannot set headers.
func (s *HTTPServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}
	if s.service.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "WS_UNAVAILABLE", "Event stream not available", nil)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logger.Warnf("websocket upgrade: %v", err)
		return
	}
	s.service.hub.Serve(conn, sess.UserID)
}

// --- boards ---

func (s *HTTPServer) handleListBoards(w http.ResponseWriter, r *http.Request) {
	f, err := boardFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	boards, err := s.service.ListBoards(r.Context(), sessionFrom(r), f)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(boards))
	for _, b := range boards {
		items = append(items, boardPayload(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"boards": items})
}

func (s *HTTPServer) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var input CreateBoardInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	board, err := s.service.CreateBoard(r.Context(), sessionFrom(r), input)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, boardPayload(board))
}

func (s *HTTPServer) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.GetBoardView(r.Context(), sessionFrom(r), mux.Vars(r)["boardID"])
	if err != nil {
		writeMappedError(w, err)
		return
	}

	taskFilter, err := taskFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	columns := make([]map[string]any, 0, len(view.Columns))
	for _, c := range view.Columns {
		tasks := c.Tasks
		if !taskFilter.Empty() {
			tasks = filter.Tasks(tasks, taskFilter)
		}
		taskItems := make([]map[string]any, 0, len(tasks))
		for _, t := range tasks {
			taskItems = append(taskItems, taskPayload(t))
		}
		columns = append(columns, map[string]any{
			"id":        c.ID,
			"boardId":   c.BoardID,
			"title":     c.Title,
			"sortOrder": c.SortOrder,
			"tasks":     taskItems,
		})
	}
	payload := boardPayload(view.Board)
	payload["columns"] = columns
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleUpdateBoard(w http.ResponseWriter, r *http.Request) {
	var input UpdateBoardInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	board, err := s.service.UpdateBoard(r.Context(), sessionFrom(r), mux.Vars(r)["boardID"], input)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, boardPayload(board))
}

func (s *HTTPServer) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteBoard(r.Context(), sessionFrom(r), mux.Vars(r)["boardID"]); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleDragBoard(w http.ResponseWriter, r *http.Request) {
	var input DragInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	moved, err := s.service.DragBoard(r.Context(), sessionFrom(r), input)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"moved": moved})
}

// --- columns ---

func (s *HTTPServer) handleCreateColumn(w http.ResponseWriter, r *http.Request) {
	var input CreateColumnInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	column, err := s.service.CreateColumn(r.Context(), sessionFrom(r), mux.Vars(r)["boardID"], input)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, columnPayload(column))
}

func (s *HTTPServer) handleDragColumn(w http.ResponseWriter, r *http.Request) {
	var input DragInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	moved, err := s.service.DragColumn(r.Context(), sessionFrom(r), mux.Vars(r)["boardID"], input)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"moved": moved})
}

func (s *HTTPServer) handleRenameColumn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.RenameColumn(r.Context(), sessionFrom(r), mux.Vars(r)["columnID"], body.Title); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleDeleteColumn(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteColumn(r.Context(), sessionFrom(r), mux.Vars(r)["columnID"]); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- tasks ---

func (s *HTTPServer) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var input CreateTaskInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	task, err := s.service.CreateTask(r.Context(), sessionFrom(r), mux.Vars(r)["boardID"], input)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, taskPayload(task))
}

func (s *HTTPServer) handleDragTask(w http.ResponseWriter, r *http.Request) {
	var input DragInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	moved, err := s.service.DragTask(r.Context(), sessionFrom(r), mux.Vars(r)["boardID"], input)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"moved": moved})
}

func (s *HTTPServer) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var input UpdateTaskInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	task, err := s.service.UpdateTask(r.Context(), sessionFrom(r), mux.Vars(r)["taskID"], input)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskPayload(task))
}

func (s *HTTPServer) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteTask(r.Context(), sessionFrom(r), mux.Vars(r)["taskID"]); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleMoveTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ColumnID string `json:"columnId"`
		Index    int    `json:"index"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.ColumnID == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "columnId is required", nil)
		return
	}
	if err := s.service.MoveTask(r.Context(), sessionFrom(r), mux.Vars(r)["taskID"], body.ColumnID, body.Index); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- labels ---

func (s *HTTPServer) handleListLabels(w http.ResponseWriter, r *http.Request) {
	labels, err := s.service.ListLabels(r.Context(), sessionFrom(r))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(labels))
	for _, l := range labels {
		items = append(items, labelPayload(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"labels": items})
}

func (s *HTTPServer) handleCreateLabel(w http.ResponseWriter, r *http.Request) {
	var input CreateLabelInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	label, err := s.service.CreateLabel(r.Context(), sessionFrom(r), input)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, labelPayload(label))
}

func (s *HTTPServer) handleDeleteLabel(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteLabel(r.Context(), sessionFrom(r), mux.Vars(r)["labelID"]); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleSetBoardLabels(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LabelIDs []string `json:"labelIds"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	labels, err := s.service.SetBoardLabels(r.Context(), sessionFrom(r), mux.Vars(r)["boardID"], body.LabelIDs)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(labels))
	for _, l := range labels {
		items = append(items, labelPayload(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"labels": items})
}

// --- products ---

func (s *HTTPServer) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.service.ListProducts(r.Context(), sessionFrom(r), mux.Vars(r)["boardID"])
	if err != nil {
		writeMappedError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(products))
	for _, p := range products {
		items = append(items, productPayload(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": items})
}

func (s *HTTPServer) handleReplaceProducts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Products []ProductInput `json:"products"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	board, err := s.service.ReplaceProducts(r.Context(), sessionFrom(r), mux.Vars(r)["boardID"], body.Products)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, boardPayload(board))
}

func (s *HTTPServer) handleListSavedProducts(w http.ResponseWriter, r *http.Request) {
	saved, err := s.service.ListSavedProducts(r.Context(), sessionFrom(r))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(saved))
	for _, p := range saved {
		items = append(items, map[string]any{"id": p.ID, "name": p.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"savedProducts": items})
}

// --- preferences ---

func (s *HTTPServer) handleGetViewMode(w http.ResponseWriter, r *http.Request) {
	mode, err := s.service.ViewMode(r.Context(), sessionFrom(r))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"viewMode": mode})
}

func (s *HTTPServer) handleSetViewMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ViewMode string `json:"viewMode"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.SetViewMode(r.Context(), sessionFrom(r), body.ViewMode); err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"viewMode": body.ViewMode})
}

// --- search ---

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))
	response := s.service.Search(r.Context(), sessionFrom(r), query.Get("q"), search.ResultType(query.Get("type")), limit, offset)
	writeJSON(w, http.StatusOK, response)
}

// --- payloads ---

func sessionPayload(sess Session) map[string]any {
	return map[string]any{
		"token":        sess.Token,
		"refreshToken": sess.RefreshToken,
		"userId":       sess.UserID,
		"userName":     sess.UserName,
	}
}

func boardPayload(b store.Board) map[string]any {
	labels := make([]map[string]any, 0, len(b.Labels))
	for _, l := range b.Labels {
		labels = append(labels, labelPayload(l))
	}
	products := make([]map[string]any, 0, len(b.Products))
	for _, p := range b.Products {
		products = append(products, productPayload(p))
	}
	return map[string]any{
		"id":            b.ID,
		"title":         b.Title,
		"color":         b.Color,
		"sortOrder":     b.SortOrder,
		"totalValue":    b.TotalValue,
		"upcomingValue": b.UpcomingValue,
		"receivedValue": b.ReceivedValue,
		"annual":        b.Annual,
		"startedDate":   datePayload(b.StartedDate),
		"endingDate":    datePayload(b.EndingDate),
		"notes":         b.Notes,
		"status":        string(boardStatus(b)),
		"totalTasks":    b.TotalTasks,
		"labels":        labels,
		"products":      products,
		"createdAt":     b.CreatedAt.Format(time.RFC3339),
		"updatedAt":     b.UpdatedAt.Format(time.RFC3339),
	}
}

func columnPayload(c store.Column) map[string]any {
	return map[string]any{
		"id":        c.ID,
		"boardId":   c.BoardID,
		"title":     c.Title,
		"sortOrder": c.SortOrder,
	}
}

func taskPayload(t store.Task) map[string]any {
	return map[string]any{
		"id":          t.ID,
		"columnId":    t.ColumnID,
		"title":       t.Title,
		"description": t.Description,
		"assignee":    t.Assignee,
		"dueDate":     datePayload(t.DueDate),
		"priority":    t.Priority,
		"sortOrder":   t.SortOrder,
		"createdAt":   t.CreatedAt.Format(time.RFC3339),
		"updatedAt":   t.UpdatedAt.Format(time.RFC3339),
	}
}

func labelPayload(l store.Label) map[string]any {
	return map[string]any{
		"id":    l.ID,
		"text":  l.Text,
		"color": l.Color,
	}
}

func productPayload(p store.Product) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"startedDate": p.StartedDate.Format("2006-01-02"),
		"period":      p.Period,
		"price":       p.Price,
		"cost":        p.Cost,
	}
}

func boardStatus(b store.Board) derive.Status {
	return derive.Classify(derive.Values{
		Upcoming: b.UpcomingValue,
		Received: b.ReceivedValue,
		Total:    b.TotalValue,
		Annual:   b.Annual,
	})
}

func datePayload(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

// --- query parsing ---

func boardFilterFromQuery(r *http.Request) (filter.BoardFilter, error) {
	query := r.URL.Query()
	var f filter.BoardFilter

	if raw := query.Get("createdFrom"); raw != "" {
		from, err := parseDate(raw)
		if err != nil {
			return f, fmt.Errorf("createdFrom must be YYYY-MM-DD")
		}
		f.CreatedFrom = &from
	}
	if raw := query.Get("createdUntil"); raw != "" {
		until, err := parseDate(raw)
		if err != nil {
			return f, fmt.Errorf("createdUntil must be YYYY-MM-DD")
		}
		// inclusive through the end of the day
		until = until.Add(24*time.Hour - time.Nanosecond)
		f.CreatedUntil = &until
	}
	if raw := query.Get("minTasks"); raw != "" {
		min, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("minTasks must be an integer")
		}
		f.MinTasks = &min
	}
	if raw := query.Get("maxTasks"); raw != "" {
		max, err := strconv.Atoi(raw)
		if err != nil {
			return f, fmt.Errorf("maxTasks must be an integer")
		}
		f.MaxTasks = &max
	}
	return f, nil
}

func taskFilterFromQuery(r *http.Request) (filter.TaskFilter, error) {
	query := r.URL.Query()
	var f filter.TaskFilter

	if raw := query.Get("priority"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			p = strings.TrimSpace(p)
			if !store.ValidPriority(p) {
				return f, fmt.Errorf("priority must be low, medium or high")
			}
			f.Priorities = append(f.Priorities, p)
		}
	}
	if raw := query.Get("dueDate"); raw != "" {
		due, err := parseDate(raw)
		if err != nil {
			return f, fmt.Errorf("dueDate must be YYYY-MM-DD")
		}
		f.DueDate = &due
	}
	return f, nil
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
