package server

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/lumenbank/apiserver/config"
	"github.com/lumenbank/apiserver/internal/db"
	"github.com/lumenbank/apiserver/internal/services"
	"github.com/lumenbank/apiserver/internal/store"
	"github.com/lumenbank/apiserver/internal/store/jsonfile"
)

// Repositories is the persistence layer selected by STORE_DRIVER.
type Repositories struct {
	Users         services.UserRepository
	Accounts      services.AccountRepository
	Ledger        services.LedgerRepository
	History       services.HistoryRepository
	Notifications services.NotificationRepository
	BillSplits    services.BillSplitRepository
	Investments   services.InvestmentRepository

	close func() error
}

// Close releases the underlying store.
func (r Repositories) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// OpenRepositories opens the flat-file store under cfg.DataDir or the
// postgres database, depending on cfg.StoreDriver.
func OpenRepositories(ctx context.Context, cfg config.Config, logger log.Logger) (Repositories, error) {
	switch cfg.StoreDriver {
	case config.StoreJSONFile:
		s, err := jsonfile.Open(cfg.DataDir, logger)
		if err != nil {
			return Repositories{}, err
		}
		logger.Log("msg", "using flat-file store", "dir", s.Dir())
		return Repositories{
			Users:         s,
			Accounts:      s,
			Ledger:        s,
			History:       s,
			Notifications: s,
			BillSplits:    s,
			Investments:   s,
			close:         s.Close,
		}, nil

	case config.StorePostgres:
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return Repositories{}, fmt.Errorf("open database: %w", err)
		}
		logger.Log("msg", "using postgres store", "host", cfg.Database.Host, "db", cfg.Database.DBName)
		accounts := store.NewAccountRepository(conn)
		return Repositories{
			Users:         store.NewUserRepository(conn),
			Accounts:      accounts,
			Ledger:        accounts,
			History:       accounts,
			Notifications: store.NewNotificationRepository(conn),
			BillSplits:    store.NewBillSplitRepository(conn),
			Investments:   store.NewInvestmentRepository(conn),
			close:         conn.Close,
		}, nil

	default:
		return Repositories{}, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
}
