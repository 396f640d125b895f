package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lumenbank/apiserver/types"
)

// BillSplitRepository handles persistence for bill splits.
type BillSplitRepository struct {
	db *sql.DB
}

func NewBillSplitRepository(db *sql.DB) *BillSplitRepository {
	return &BillSplitRepository{db: db}
}

const selectBillSplit = `
		SELECT id, created_by, title, amount, category, status, participants, created_at, updated_at
		FROM bill_splits`

func scanBillSplit(row rowScanner) (types.BillSplit, error) {
	var split types.BillSplit
	var participantsJSON []byte
	err := row.Scan(
		&split.ID,
		&split.CreatedBy,
		&split.Title,
		&split.Amount,
		&split.Category,
		&split.Status,
		&participantsJSON,
		&split.CreatedAt,
		&split.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.BillSplit{}, ErrNotFound
		}
		return types.BillSplit{}, err
	}
	if err := json.Unmarshal(participantsJSON, &split.Participants); err != nil {
		return types.BillSplit{}, err
	}
	return split, nil
}

func (r *BillSplitRepository) CreateBillSplit(ctx context.Context, split types.BillSplit) (types.BillSplit, error) {
	participantsJSON, err := json.Marshal(split.Participants)
	if err != nil {
		return types.BillSplit{}, err
	}

	const query = `
		INSERT INTO bill_splits (id, created_by, title, amount, category, status, participants, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		split.ID,
		split.CreatedBy,
		split.Title,
		split.Amount,
		split.Category,
		split.Status,
		participantsJSON,
		split.CreatedAt,
		split.UpdatedAt,
	); err != nil {
		return types.BillSplit{}, err
	}
	return split, nil
}

func (r *BillSplitRepository) GetBillSplit(ctx context.Context, id string) (types.BillSplit, error) {
	return scanBillSplit(r.db.QueryRowContext(ctx, selectBillSplit+` WHERE id = $1`, id))
}

// ListBillSplits returns the splits the user created or participates in.
func (r *BillSplitRepository) ListBillSplits(ctx context.Context, userID string) ([]types.BillSplit, error) {
	const where = `
		WHERE created_by = $1
		   OR participants @> jsonb_build_array(jsonb_build_object('id', $1::text))
		ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, selectBillSplit+where, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var splits []types.BillSplit
	for rows.Next() {
		split, err := scanBillSplit(rows)
		if err != nil {
			return nil, err
		}
		splits = append(splits, split)
	}
	return splits, rows.Err()
}

func (r *BillSplitRepository) UpdateBillSplit(ctx context.Context, split types.BillSplit) (types.BillSplit, error) {
	participantsJSON, err := json.Marshal(split.Participants)
	if err != nil {
		return types.BillSplit{}, err
	}

	const query = `
		UPDATE bill_splits
		SET title = $1,
			amount = $2,
			category = $3,
			status = $4,
			participants = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		split.Title,
		split.Amount,
		split.Category,
		split.Status,
		participantsJSON,
		split.UpdatedAt,
		split.ID,
	)
	if err != nil {
		return types.BillSplit{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.BillSplit{}, err
	}
	if affected == 0 {
		return types.BillSplit{}, ErrNotFound
	}
	return split, nil
}
