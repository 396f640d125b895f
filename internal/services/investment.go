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

type InvestmentRepository interface {
	CreateInvestment(ctx context.Context, inv types.Investment) (types.Investment, error)
	GetInvestment(ctx context.Context, id string) (types.Investment, error)
	ListInvestments(ctx context.Context, userID string) ([]types.Investment, error)
	UpdateInvestment(ctx context.Context, inv types.Investment) (types.Investment, error)
}

// InvestmentService tracks a user's portfolio holdings.
type InvestmentService struct {
	repo   InvestmentRepository
	logger log.Logger
}

func NewInvestmentService(repo InvestmentRepository, logger log.Logger) *InvestmentService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &InvestmentService{repo: repo, logger: logger}
}

// InvestmentInput carries the fields of a create or update request. Nil
// fields are left unchanged on update.
type InvestmentInput struct {
	Symbol        *string
	Name          *string
	Sector        *string
	Quantity      *decimal.Decimal
	PurchasePrice *decimal.Decimal
	CurrentPrice  *decimal.Decimal
	PurchaseDate  *time.Time
}

// Portfolio is the user's holdings with aggregate values.
type Portfolio struct {
	Holdings   []types.Investment `json:"holdings"`
	TotalValue decimal.Decimal    `json:"totalValue"`
	TotalCost  decimal.Decimal    `json:"totalCost"`
	GainLoss   decimal.Decimal    `json:"gainLoss"`
}

func (s *InvestmentService) Create(ctx context.Context, userID string, in InvestmentInput) (types.Investment, error) {
	if in.Symbol == nil || in.Quantity == nil || in.PurchasePrice == nil {
		return types.Investment{}, invalid(ErrInvestmentInvalid, "symbol, quantity and purchase price are required")
	}

	now := time.Now().UTC()
	inv := types.Investment{
		ID:           uuid.NewString(),
		UserID:       userID,
		PurchaseDate: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := applyInvestmentInput(&inv, in); err != nil {
		return types.Investment{}, err
	}
	if in.CurrentPrice == nil {
		inv.CurrentPrice = inv.PurchasePrice
	}
	return s.repo.CreateInvestment(ctx, inv)
}

// List returns the user's holdings and their totals.
func (s *InvestmentService) List(ctx context.Context, userID string) (Portfolio, error) {
	items, err := s.repo.ListInvestments(ctx, userID)
	if err != nil {
		return Portfolio{}, err
	}

	p := Portfolio{Holdings: items}
	if p.Holdings == nil {
		p.Holdings = []types.Investment{}
	}
	for _, inv := range items {
		p.TotalValue = p.TotalValue.Add(inv.MarketValue())
		p.TotalCost = p.TotalCost.Add(inv.Quantity.Mul(inv.PurchasePrice))
	}
	p.TotalValue = p.TotalValue.Round(2)
	p.TotalCost = p.TotalCost.Round(2)
	p.GainLoss = p.TotalValue.Sub(p.TotalCost)
	return p, nil
}

// Update merges in into one of the user's holdings.
func (s *InvestmentService) Update(ctx context.Context, userID, id string, in InvestmentInput) (types.Investment, error) {
	inv, err := s.repo.GetInvestment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Investment{}, ErrInvestmentNotFound
		}
		return types.Investment{}, err
	}
	if inv.UserID != userID {
		return types.Investment{}, ErrInvestmentNotFound
	}

	if err := applyInvestmentInput(&inv, in); err != nil {
		return types.Investment{}, err
	}
	inv.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.UpdateInvestment(ctx, inv)
	if errors.Is(err, store.ErrNotFound) {
		return types.Investment{}, ErrInvestmentNotFound
	}
	return updated, err
}

func applyInvestmentInput(inv *types.Investment, in InvestmentInput) error {
	if in.Symbol != nil {
		symbol := strings.ToUpper(strings.TrimSpace(*in.Symbol))
		if symbol == "" {
			return invalid(ErrInvestmentInvalid, "symbol is required")
		}
		inv.Symbol = symbol
	}
	if in.Name != nil {
		inv.Name = strings.TrimSpace(*in.Name)
	}
	if in.Sector != nil {
		inv.Sector = strings.TrimSpace(*in.Sector)
	}
	if in.Quantity != nil {
		if !in.Quantity.IsPositive() {
			return invalid(ErrInvestmentInvalid, "quantity must be positive")
		}
		inv.Quantity = *in.Quantity
	}
	for _, price := range []struct {
		src *decimal.Decimal
		dst *decimal.Decimal
	}{
		{in.PurchasePrice, &inv.PurchasePrice},
		{in.CurrentPrice, &inv.CurrentPrice},
	} {
		if price.src == nil {
			continue
		}
		if price.src.IsNegative() {
			return invalid(ErrInvestmentInvalid, "prices must not be negative")
		}
		*price.dst = price.src.Round(2)
	}
	if in.PurchaseDate != nil && !in.PurchaseDate.IsZero() {
		inv.PurchaseDate = in.PurchaseDate.UTC()
	}
	return nil
}
