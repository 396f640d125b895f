package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lumenbank/apiserver/types"
)

// InvestmentRepository handles persistence for portfolio holdings.
type InvestmentRepository struct {
	db *sql.DB
}

func NewInvestmentRepository(db *sql.DB) *InvestmentRepository {
	return &InvestmentRepository{db: db}
}

const selectInvestment = `
		SELECT id, user_id, symbol, name, sector, quantity, purchase_price, current_price,
		       purchase_date, created_at, updated_at
		FROM investments`

func scanInvestment(row rowScanner) (types.Investment, error) {
	var inv types.Investment
	err := row.Scan(
		&inv.ID,
		&inv.UserID,
		&inv.Symbol,
		&inv.Name,
		&inv.Sector,
		&inv.Quantity,
		&inv.PurchasePrice,
		&inv.CurrentPrice,
		&inv.PurchaseDate,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Investment{}, ErrNotFound
		}
		return types.Investment{}, err
	}
	return inv, nil
}

func (r *InvestmentRepository) CreateInvestment(ctx context.Context, inv types.Investment) (types.Investment, error) {
	const query = `
		INSERT INTO investments (
			id, user_id, symbol, name, sector, quantity, purchase_price, current_price,
			purchase_date, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		inv.ID,
		inv.UserID,
		inv.Symbol,
		inv.Name,
		inv.Sector,
		inv.Quantity,
		inv.PurchasePrice,
		inv.CurrentPrice,
		inv.PurchaseDate,
		inv.CreatedAt,
		inv.UpdatedAt,
	); err != nil {
		return types.Investment{}, err
	}
	return inv, nil
}

func (r *InvestmentRepository) GetInvestment(ctx context.Context, id string) (types.Investment, error) {
	return scanInvestment(r.db.QueryRowContext(ctx, selectInvestment+` WHERE id = $1`, id))
}

func (r *InvestmentRepository) ListInvestments(ctx context.Context, userID string) ([]types.Investment, error) {
	rows, err := r.db.QueryContext(ctx, selectInvestment+` WHERE user_id = $1 ORDER BY seq`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []types.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	return items, rows.Err()
}

func (r *InvestmentRepository) UpdateInvestment(ctx context.Context, inv types.Investment) (types.Investment, error) {
	const query = `
		UPDATE investments
		SET symbol = $1,
			name = $2,
			sector = $3,
			quantity = $4,
			purchase_price = $5,
			current_price = $6,
			purchase_date = $7,
			updated_at = $8
		WHERE id = $9`
	result, err := r.db.ExecContext(
		ctx,
		query,
		inv.Symbol,
		inv.Name,
		inv.Sector,
		inv.Quantity,
		inv.PurchasePrice,
		inv.CurrentPrice,
		inv.PurchaseDate,
		inv.UpdatedAt,
		inv.ID,
	)
	if err != nil {
		return types.Investment{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Investment{}, err
	}
	if affected == 0 {
		return types.Investment{}, ErrNotFound
	}
	return inv, nil
}
