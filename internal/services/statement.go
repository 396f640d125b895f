package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/lumenbank/apiserver/internal/storage"
	"github.com/lumenbank/apiserver/types"
)

// statementLayout names archived statements by generation time.
const statementLayout = "20060102T150405.000000000Z"

// ObjectStore archives JSON documents. PutJSON returns where the document
// was written; GetJSON fails with storage.ErrNotFound for a missing key.
type ObjectStore interface {
	PutJSON(ctx context.Context, key string, v any) (string, error)
	GetJSON(ctx context.Context, key string, v any) error
}

// Statement is the archived snapshot of a user's accounts and history.
type Statement struct {
	UserID      string               `json:"userId"`
	GeneratedAt time.Time            `json:"generatedAt"`
	Accounts    []types.Account      `json:"accounts"`
	History     []types.HistoryEntry `json:"history"`
}

// StatementReceipt tells the caller where a statement was archived.
type StatementReceipt struct {
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Location    string    `json:"location"`
	GeneratedAt time.Time `json:"generatedAt"`
	Entries     int       `json:"entries"`
}

// StatementService snapshots history into object storage.
type StatementService struct {
	accounts *AccountService
	history  *HistoryService
	store    ObjectStore
	logger   log.Logger
}

// NewStatementService returns a service whose Archive and Fetch fail with
// ErrStorageDisabled when store is nil.
func NewStatementService(accounts *AccountService, history *HistoryService, store ObjectStore, logger log.Logger) *StatementService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &StatementService{accounts: accounts, history: history, store: store, logger: logger}
}

func (s *StatementService) Archive(ctx context.Context, userID string) (StatementReceipt, error) {
	if s.store == nil {
		return StatementReceipt{}, ErrStorageDisabled
	}

	accounts, err := s.accounts.ListByOwner(ctx, userID)
	if err != nil {
		return StatementReceipt{}, err
	}
	history, err := s.history.HistoryFor(ctx, userID)
	if err != nil {
		return StatementReceipt{}, err
	}

	now := time.Now().UTC()
	name := now.Format(statementLayout) + ".json"
	key := statementKey(userID, name)
	location, err := s.store.PutJSON(ctx, key, Statement{
		UserID:      userID,
		GeneratedAt: now,
		Accounts:    accounts,
		History:     history,
	})
	if err != nil {
		return StatementReceipt{}, fmt.Errorf("archive statement: %w", err)
	}

	s.logger.Log("msg", "statement archived", "user", userID, "location", location, "entries", len(history))
	return StatementReceipt{Name: name, Key: key, Location: location, GeneratedAt: now, Entries: len(history)}, nil
}

// Fetch reads back one of userID's archived statements. name is the Name
// from the StatementReceipt; anything else, including another user's
// statement, is ErrStatementNotFound.
func (s *StatementService) Fetch(ctx context.Context, userID, name string) (Statement, error) {
	if s.store == nil {
		return Statement{}, ErrStorageDisabled
	}
	stamp, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return Statement{}, ErrStatementNotFound
	}
	if _, err := time.Parse(statementLayout, stamp); err != nil {
		return Statement{}, ErrStatementNotFound
	}

	var stmt Statement
	err := s.store.GetJSON(ctx, statementKey(userID, name), &stmt)
	if errors.Is(err, storage.ErrNotFound) {
		return Statement{}, ErrStatementNotFound
	}
	if err != nil {
		return Statement{}, fmt.Errorf("fetch statement: %w", err)
	}
	if stmt.UserID != userID {
		s.logger.Log("msg", "statement owner mismatch", "user", userID, "name", name, "owner", stmt.UserID)
		return Statement{}, ErrStatementNotFound
	}
	return stmt, nil
}

func statementKey(userID, name string) string {
	return "statements/" + userID + "/" + name
}
