package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (Task, error) {
	var t Task
	err := s.db.QueryRowContext(ctx, `
		SELECT id, column_id, title, description, assignee, due_date, priority, sort_order, created_at, updated_at
		FROM tasks
		WHERE id=$1
	`, taskID).Scan(&t.ID, &t.ColumnID, &t.Title, &t.Description, &t.Assignee, &t.DueDate, &t.Priority, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

func (s *PostgresStore) ListTasksByColumn(ctx context.Context, columnID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, column_id, title, description, assignee, due_date, priority, sort_order, created_at, updated_at
		FROM tasks
		WHERE column_id=$1
		ORDER BY sort_order ASC, updated_at DESC
	`, columnID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
	tasks := make([]Task, 0)
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.ColumnID, &t.Title, &t.Description, &t.Assignee, &t.DueDate, &t.Priority, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func (s *PostgresStore) InsertTask(ctx context.Context, t Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, column_id, title, description, assignee, due_date, priority, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.ColumnID, t.Title, t.Description, t.Assignee, t.DueDate, t.Priority, t.SortOrder)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// MaxTaskSortOrder returns the highest sort order within a column, or -1
// when the column is empty.
func (s *PostgresStore) MaxTaskSortOrder(ctx context.Context, columnID string) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(sort_order) FROM tasks WHERE column_id=$1`, columnID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max task sort order: %w", err)
	}
	if !max.Valid {
		return -1, nil
	}
	return int(max.Int64), nil
}

// UpdateTask applies the non-nil fields in updates. A nil-field-only call
// still bumps updated_at so ordering ties resolve toward the edited task.
func (s *PostgresStore) UpdateTask(ctx context.Context, taskID string, updates TaskUpdates) error {
	set := []string{"updated_at=now()"}
	args := []any{taskID}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if updates.Title != nil {
		add("title", *updates.Title)
	}
	if updates.Description != nil {
		add("description", *updates.Description)
	}
	if updates.Assignee != nil {
		add("assignee", *updates.Assignee)
	}
	if updates.Priority != nil {
		add("priority", *updates.Priority)
	}
	if updates.ClearDue {
		set = append(set, "due_date=NULL")
	} else if updates.DueDate != nil {
		add("due_date", *updates.DueDate)
	}

	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id=$1", strings.Join(set, ", "))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteTask(ctx context.Context, taskID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MoveTask relocates a task to targetColumnID at the given index and
// renumbers both affected columns contiguously from zero. The whole move
// runs in one transaction so a reader never observes the task in two
// columns or a column with a numbering gap.
func (s *PostgresStore) MoveTask(ctx context.Context, taskID, targetColumnID string, index int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin move: %w", err)
	}
	defer tx.Rollback()

	var sourceColumnID string
	err = tx.QueryRowContext(ctx, `SELECT column_id FROM tasks WHERE id=$1 FOR UPDATE`, taskID).Scan(&sourceColumnID)
	if err != nil {
		return err
	}

	target, err := columnTaskIDs(ctx, tx, targetColumnID, taskID)
	if err != nil {
		return err
	}
	if index < 0 {
		index = 0
	}
	if index > len(target) {
		index = len(target)
	}
	target = append(target[:index:index], append([]string{taskID}, target[index:]...)...)

	_, err = tx.ExecContext(ctx, `UPDATE tasks SET column_id=$2, updated_at=now() WHERE id=$1`, taskID, targetColumnID)
	if err != nil {
		return fmt.Errorf("move task: %w", err)
	}
	if err := renumberTasks(ctx, tx, target); err != nil {
		return err
	}

	if sourceColumnID != targetColumnID {
		source, err := columnTaskIDs(ctx, tx, sourceColumnID, taskID)
		if err != nil {
			return err
		}
		if err := renumberTasks(ctx, tx, source); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ReorderTasks rewrites sort orders for a set of tasks in one transaction.
func (s *PostgresStore) ReorderTasks(ctx context.Context, updates []SortUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		_, err := tx.ExecContext(ctx, `UPDATE tasks SET sort_order=$2, updated_at=now() WHERE id=$1`, u.ID, u.SortOrder)
		if err != nil {
			return fmt.Errorf("reorder task %s: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

// columnTaskIDs lists a column's task ids in display order, excluding the
// task being moved.
func columnTaskIDs(ctx context.Context, tx *sql.Tx, columnID, excludeTaskID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM tasks
		WHERE column_id=$1 AND id<>$2
		ORDER BY sort_order ASC, updated_at DESC
	`, columnID, excludeTaskID)
	if err != nil {
		return nil, fmt.Errorf("column task ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan task id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task ids: %w", err)
	}
	return ids, nil
}

func renumberTasks(ctx context.Context, tx *sql.Tx, ids []string) error {
	for i, id := range ids {
		_, err := tx.ExecContext(ctx, `UPDATE tasks SET sort_order=$2 WHERE id=$1`, id, i)
		if err != nil {
			return fmt.Errorf("renumber task %s: %w", id, err)
		}
	}
	return nil
}

// TaskBoard resolves the board a task belongs to, for ownership checks.
func (s *PostgresStore) TaskBoard(ctx context.Context, taskID string) (string, error) {
	var boardID string
	err := s.db.QueryRowContext(ctx, `
		SELECT c.board_id FROM tasks t JOIN columns c ON c.id=t.column_id WHERE t.id=$1
	`, taskID).Scan(&boardID)
	if err != nil {
		return "", err
	}
	return boardID, nil
}
