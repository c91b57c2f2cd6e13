package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *PostgresStore) ListLabels(ctx context.Context, userID string) ([]Label, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, text, color, created_at
		FROM labels
		WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer rows.Close()
	return scanLabels(rows)
}

func scanLabels(rows *sql.Rows) ([]Label, error) {
	labels := make([]Label, 0)
	for rows.Next() {
		var l Label
		if err := rows.Scan(&l.ID, &l.UserID, &l.Text, &l.Color, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		labels = append(labels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labels: %w", err)
	}
	return labels, nil
}

func (s *PostgresStore) InsertLabel(ctx context.Context, l Label) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO labels (id, user_id, text, color)
		VALUES ($1, $2, $3, $4)
	`, l.ID, l.UserID, l.Text, l.Color)
	if err != nil {
		return fmt.Errorf("insert label: %w", err)
	}
	return nil
}

// DeleteLabel removes a label; board associations cascade away with it.
func (s *PostgresStore) DeleteLabel(ctx context.Context, labelID, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM labels WHERE id=$1 AND user_id=$2`, labelID, userID)
	if err != nil {
		return fmt.Errorf("delete label: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetBoardLabels replaces a board's label set wholesale.
func (s *PostgresStore) SetBoardLabels(ctx context.Context, boardID string, labelIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set labels: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM board_labels WHERE board_id=$1`, boardID); err != nil {
		return fmt.Errorf("clear board labels: %w", err)
	}
	for _, labelID := range labelIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO board_labels (board_id, label_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, boardID, labelID)
		if err != nil {
			return fmt.Errorf("attach label %s: %w", labelID, err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) ListBoardLabels(ctx context.Context, boardID string) ([]Label, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.user_id, l.text, l.color, l.created_at
		FROM labels l
		JOIN board_labels bl ON bl.label_id = l.id
		WHERE bl.board_id=$1
		ORDER BY l.created_at DESC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list board labels: %w", err)
	}
	defer rows.Close()
	return scanLabels(rows)
}
