package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/google/uuid"
	"github.com/lumenbank/apiserver/internal/store"
	"github.com/lumenbank/apiserver/types"
	"github.com/shopspring/decimal"
)

type BillSplitRepository interface {
	CreateBillSplit(ctx context.Context, split types.BillSplit) (types.BillSplit, error)
	GetBillSplit(ctx context.Context, id string) (types.BillSplit, error)
	ListBillSplits(ctx context.Context, userID string) ([]types.BillSplit, error)
	UpdateBillSplit(ctx context.Context, split types.BillSplit) (types.BillSplit, error)
}

// BillSplitService shares expenses between users.
type BillSplitService struct {
	repo   BillSplitRepository
	logger log.Logger
}

func NewBillSplitService(repo BillSplitRepository, logger log.Logger) *BillSplitService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &BillSplitService{repo: repo, logger: logger}
}

// BillSplitInput carries the fields of a create or update request. Nil
// fields are left unchanged on update.
type BillSplitInput struct {
	Title        *string
	Amount       *decimal.Decimal
	Category     *string
	Status       *string
	Participants []types.Participant
}

func (s *BillSplitService) Create(ctx context.Context, userID string, in BillSplitInput) (types.BillSplit, error) {
	now := time.Now().UTC()
	split := types.BillSplit{
		ID:        uuid.NewString(),
		CreatedBy: userID,
		Status:    types.BillSplitPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Title == nil || in.Amount == nil {
		return types.BillSplit{}, invalid(ErrBillSplitInvalid, "title and amount are required")
	}
	if err := applyBillSplitInput(&split, in); err != nil {
		return types.BillSplit{}, err
	}
	return s.repo.CreateBillSplit(ctx, split)
}

// List returns the splits the user created or participates in.
func (s *BillSplitService) List(ctx context.Context, userID string) ([]types.BillSplit, error) {
	items, err := s.repo.ListBillSplits(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []types.BillSplit{}
	}
	return items, nil
}

// Update merges in into the split. Only its creator and participants may
// change it; anyone else gets ErrBillSplitNotFound.
func (s *BillSplitService) Update(ctx context.Context, userID, id string, in BillSplitInput) (types.BillSplit, error) {
	split, err := s.repo.GetBillSplit(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.BillSplit{}, ErrBillSplitNotFound
		}
		return types.BillSplit{}, err
	}
	if !split.VisibleTo(userID) {
		return types.BillSplit{}, ErrBillSplitNotFound
	}

	if err := applyBillSplitInput(&split, in); err != nil {
		return types.BillSplit{}, err
	}
	split.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.UpdateBillSplit(ctx, split)
	if errors.Is(err, store.ErrNotFound) {
		return types.BillSplit{}, ErrBillSplitNotFound
	}
	return updated, err
}

func applyBillSplitInput(split *types.BillSplit, in BillSplitInput) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return invalid(ErrBillSplitInvalid, "title is required")
		}
		split.Title = title
	}
	if in.Amount != nil {
		if !in.Amount.IsPositive() {
			return invalid(ErrBillSplitInvalid, "amount must be positive")
		}
		split.Amount = in.Amount.Round(2)
	}
	if in.Category != nil {
		split.Category = strings.TrimSpace(*in.Category)
	}
	if in.Status != nil {
		switch status := strings.ToLower(strings.TrimSpace(*in.Status)); status {
		case types.BillSplitPending, types.BillSplitCompleted:
			split.Status = status
		default:
			return invalid(ErrBillSplitInvalid, "unknown status "+status)
		}
	}
	if in.Participants != nil {
		participants := make([]types.Participant, 0, len(in.Participants))
		for _, p := range in.Participants {
			if strings.TrimSpace(p.ID) == "" && strings.TrimSpace(p.Email) == "" {
				return invalid(ErrBillSplitInvalid, "participant needs an id or email")
			}
			if p.Share.IsNegative() {
				return invalid(ErrBillSplitInvalid, "participant share must not be negative")
			}
			p.Share = p.Share.Round(2)
			participants = append(participants, p)
		}
		split.Participants = participants
	}
	if split.Participants == nil {
		split.Participants = []types.Participant{}
	}
	return nil
}
