package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const boardColumns = `
	id, user_id, title, color, sort_order,
	total_value, upcoming_value, received_value, annual,
	started_date, ending_date, notes, created_at, updated_at
`

func scanBoard(row interface{ Scan(...any) error }) (Board, error) {
	var b Board
	err := row.Scan(
		&b.ID, &b.UserID, &b.Title, &b.Color, &b.SortOrder,
		&b.TotalValue, &b.UpcomingValue, &b.ReceivedValue, &b.Annual,
		&b.StartedDate, &b.EndingDate, &b.Notes, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

// ListBoards returns a user's boards in display order with their labels,
// products, and task counts attached. Sort-order ties break on creation time
// descending, matching display expectations after concurrent inserts.
func (s *PostgresStore) ListBoards(ctx context.Context, userID string) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+boardColumns+`
		FROM boards
		WHERE user_id=$1
		ORDER BY sort_order ASC, created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	boards := make([]Board, 0)
	index := make(map[string]int)
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		b.Labels = []Label{}
		b.Products = []Product{}
		index[b.ID] = len(boards)
		boards = append(boards, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boards: %w", err)
	}
	if len(boards) == 0 {
		return boards, nil
	}

	if err := s.attachLabels(ctx, userID, boards, index); err != nil {
		return nil, err
	}
	if err := s.attachProducts(ctx, userID, boards, index); err != nil {
		return nil, err
	}
	if err := s.attachTaskCounts(ctx, userID, boards, index); err != nil {
		return nil, err
	}
	return boards, nil
}

func (s *PostgresStore) attachLabels(ctx context.Context, userID string, boards []Board, index map[string]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bl.board_id, l.id, l.user_id, l.text, l.color, l.created_at
		FROM board_labels bl
		JOIN labels l ON l.id = bl.label_id
		JOIN boards b ON b.id = bl.board_id
		WHERE b.user_id=$1
		ORDER BY l.created_at DESC
	`, userID)
	if err != nil {
		return fmt.Errorf("list board labels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var boardID string
		var l Label
		if err := rows.Scan(&boardID, &l.ID, &l.UserID, &l.Text, &l.Color, &l.CreatedAt); err != nil {
			return fmt.Errorf("scan board label: %w", err)
		}
		if i, ok := index[boardID]; ok {
			boards[i].Labels = append(boards[i].Labels, l)
		}
	}
	return rows.Err()
}

func (s *PostgresStore) attachProducts(ctx context.Context, userID string, boards []Board, index map[string]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.board_id, p.name, p.started_date, p.period, p.price, p.cost, p.sort_order, p.created_at, p.updated_at
		FROM products p
		JOIN boards b ON b.id = p.board_id
		WHERE b.user_id=$1
		ORDER BY p.sort_order ASC
	`, userID)
	if err != nil {
		return fmt.Errorf("list board products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.BoardID, &p.Name, &p.StartedDate, &p.Period, &p.Price, &p.Cost, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return fmt.Errorf("scan board product: %w", err)
		}
		if i, ok := index[p.BoardID]; ok {
			boards[i].Products = append(boards[i].Products, p)
		}
	}
	return rows.Err()
}

func (s *PostgresStore) attachTaskCounts(ctx context.Context, userID string, boards []Board, index map[string]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.board_id, COUNT(t.id)
		FROM columns c
		JOIN boards b ON b.id = c.board_id
		LEFT JOIN tasks t ON t.column_id = c.id
		WHERE b.user_id=$1
		GROUP BY c.board_id
	`, userID)
	if err != nil {
		return fmt.Errorf("count board tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var boardID string
		var count int
		if err := rows.Scan(&boardID, &count); err != nil {
			return fmt.Errorf("scan task count: %w", err)
		}
		if i, ok := index[boardID]; ok {
			boards[i].TotalTasks = count
		}
	}
	return rows.Err()
}

func (s *PostgresStore) GetBoard(ctx context.Context, boardID string) (Board, error) {
	b, err := scanBoard(s.db.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE id=$1`, boardID))
	if err != nil {
		return Board{}, err
	}
	b.Labels = []Label{}
	b.Products = []Product{}
	return b, nil
}

func (s *PostgresStore) InsertBoard(ctx context.Context, b Board) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO boards (id, user_id, title, color, sort_order, total_value, upcoming_value, received_value, annual, started_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, b.ID, b.UserID, b.Title, b.Color, b.SortOrder, b.TotalValue, b.UpcomingValue, b.ReceivedValue, b.Annual, b.StartedDate, b.Notes)
	if err != nil {
		return fmt.Errorf("insert board: %w", err)
	}
	return nil
}

// MaxBoardSortOrder returns the highest sort order among a user's boards, or
// -1 when the user has none, so a new board lands at the end.
func (s *PostgresStore) MaxBoardSortOrder(ctx context.Context, userID string) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(sort_order) FROM boards WHERE user_id=$1`, userID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max board sort order: %w", err)
	}
	if !max.Valid {
		return -1, nil
	}
	return int(max.Int64), nil
}

// UpdateBoardFields applies a partial update. Only the fields carried by
// updates touch their columns; updated_at always advances.
func (s *PostgresStore) UpdateBoardFields(ctx context.Context, boardID, userID string, updates BoardFieldUpdates) error {
	set := []string{"updated_at=NOW()"}
	args := []any{boardID, userID}
	n := 3

	add := func(column string, value any) {
		set = append(set, fmt.Sprintf("%s=$%d", column, n))
		args = append(args, value)
		n++
	}

	if updates.Title != nil {
		add("title", *updates.Title)
	}
	if updates.Color != nil {
		add("color", *updates.Color)
	}
	if updates.Notes != nil {
		add("notes", *updates.Notes)
	}
	if updates.StartedDate != nil {
		add("started_date", *updates.StartedDate)
	} else if updates.ClearStarted {
		set = append(set, "started_date=NULL")
	}
	if updates.TotalValue != nil {
		add("total_value", *updates.TotalValue)
	}
	if updates.UpcomingValue != nil {
		add("upcoming_value", *updates.UpcomingValue)
	}
	if updates.ReceivedValue != nil {
		add("received_value", *updates.ReceivedValue)
	}
	if updates.Annual != nil {
		add("annual", *updates.Annual)
	}

	query := fmt.Sprintf(`UPDATE boards SET %s WHERE id=$1 AND user_id=$2`, strings.Join(set, ", "))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update board fields: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteBoard(ctx context.Context, boardID, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM boards WHERE id=$1 AND user_id=$2`, boardID, userID)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReorderBoards persists a full renumbering of a user's boards in one
// transaction.
func (s *PostgresStore) ReorderBoards(ctx context.Context, userID string, updates []SortUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder tx: %w", err)
	}
	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, `
			UPDATE boards SET sort_order=$3, updated_at=NOW()
			WHERE id=$1 AND user_id=$2
		`, u.ID, userID, u.SortOrder); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("reorder board %s: %w", u.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	return nil
}

// BoardOwner returns the owning user id, or sql.ErrNoRows for an unknown
// board.
func (s *PostgresStore) BoardOwner(ctx context.Context, boardID string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM boards WHERE id=$1`, boardID).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}
