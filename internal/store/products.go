package store

import (
	"context"
	"fmt"
	"time"
)

func (s *PostgresStore) ListProducts(ctx context.Context, boardID string) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, board_id, name, started_date, period, price, cost, sort_order, created_at, updated_at
		FROM products
		WHERE board_id=$1
		ORDER BY sort_order ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.BoardID, &p.Name, &p.StartedDate, &p.Period, &p.Price, &p.Cost, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// ReplaceProducts swaps out a board's product set and writes the derived
// annual and ending-date values in the same transaction, so the board row
// and its products never disagree.
func (s *PostgresStore) ReplaceProducts(ctx context.Context, boardID string, products []Product, annual float64, endingDate *time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace products: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM products WHERE board_id=$1`, boardID); err != nil {
		return fmt.Errorf("clear products: %w", err)
	}
	for i, p := range products {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, board_id, name, started_date, period, price, cost, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, p.ID, boardID, p.Name, p.StartedDate, p.Period, p.Price, p.Cost, i)
		if err != nil {
			return fmt.Errorf("insert product %s: %w", p.Name, err)
		}
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE boards SET annual=$2, ending_date=$3, updated_at=now() WHERE id=$1
	`, boardID, annual, endingDate)
	if err != nil {
		return fmt.Errorf("update board derived values: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) ListSavedProducts(ctx context.Context, userID string) ([]SavedProduct, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, created_at
		FROM saved_products
		WHERE user_id=$1
		ORDER BY name ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list saved products: %w", err)
	}
	defer rows.Close()

	saved := make([]SavedProduct, 0)
	for rows.Next() {
		var p SavedProduct
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan saved product: %w", err)
		}
		saved = append(saved, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved products: %w", err)
	}
	return saved, nil
}

// SaveProductName remembers a product name for autocomplete. Names are
// unique per user; saving an existing one is a no-op.
func (s *PostgresStore) SaveProductName(ctx context.Context, p SavedProduct) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_products (id, user_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, name) DO NOTHING
	`, p.ID, p.UserID, p.Name)
	if err != nil {
		return fmt.Errorf("save product name: %w", err)
	}
	return nil
}
