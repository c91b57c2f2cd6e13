package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *PostgresStore) ListColumns(ctx context.Context, boardID string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, board_id, title, sort_order, created_at
		FROM columns
		WHERE board_id=$1
		ORDER BY sort_order ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	columns := make([]Column, 0)
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.ID, &c.BoardID, &c.Title, &c.SortOrder, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// ListColumnsWithTasks assembles the board view: every column in sort order
// with its tasks in sort order. Task ties break on updated_at descending so
// a just-moved task sorts ahead of a stale sibling sharing its slot.
func (s *PostgresStore) ListColumnsWithTasks(ctx context.Context, boardID string) ([]ColumnWithTasks, error) {
	columns, err := s.ListColumns(ctx, boardID)
	if err != nil {
		return nil, err
	}

	out := make([]ColumnWithTasks, len(columns))
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		out[i] = ColumnWithTasks{Column: c, Tasks: []Task{}}
		index[c.ID] = i
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.column_id, t.title, t.description, t.assignee, t.due_date, t.priority, t.sort_order, t.created_at, t.updated_at
		FROM tasks t
		JOIN columns c ON c.id = t.column_id
		WHERE c.board_id=$1
		ORDER BY t.sort_order ASC, t.updated_at DESC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list board tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.ColumnID, &t.Title, &t.Description, &t.Assignee, &t.DueDate, &t.Priority, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if i, ok := index[t.ColumnID]; ok {
			out[i].Tasks = append(out[i].Tasks, t)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate board tasks: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) InsertColumn(ctx context.Context, c Column) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO columns (id, board_id, title, sort_order)
		VALUES ($1, $2, $3, $4)
	`, c.ID, c.BoardID, c.Title, c.SortOrder)
	if err != nil {
		return fmt.Errorf("insert column: %w", err)
	}
	return nil
}

// MaxColumnSortOrder returns the highest sort order within a board, or -1
// when the board has no columns.
func (s *PostgresStore) MaxColumnSortOrder(ctx context.Context, boardID string) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(sort_order) FROM columns WHERE board_id=$1`, boardID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max column sort order: %w", err)
	}
	if !max.Valid {
		return -1, nil
	}
	return int(max.Int64), nil
}

func (s *PostgresStore) RenameColumn(ctx context.Context, columnID, title string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE columns SET title=$2 WHERE id=$1`, columnID, title)
	if err != nil {
		return fmt.Errorf("rename column: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteColumn removes a column and, via cascade, its tasks. Sort-order gaps
// left behind are tolerated; the next reorder compacts them.
func (s *PostgresStore) DeleteColumn(ctx context.Context, columnID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM columns WHERE id=$1`, columnID)
	if err != nil {
		return fmt.Errorf("delete column: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReorderColumns persists a full renumbering of a board's columns in one
// transaction.
func (s *PostgresStore) ReorderColumns(ctx context.Context, boardID string, updates []SortUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder columns: %w", err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		_, err := tx.ExecContext(ctx, `
			UPDATE columns SET sort_order=$3 WHERE id=$1 AND board_id=$2
		`, u.ID, boardID, u.SortOrder)
		if err != nil {
			return fmt.Errorf("reorder column %s: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

// ColumnBoard returns the board a column belongs to, or sql.ErrNoRows.
func (s *PostgresStore) ColumnBoard(ctx context.Context, columnID string) (string, error) {
	var boardID string
	err := s.db.QueryRowContext(ctx, `SELECT board_id FROM columns WHERE id=$1`, columnID).Scan(&boardID)
	if err != nil {
		return "", err
	}
	return boardID, nil
}
