package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-kit/kit/log"
	"github.com/lumenbank/apiserver/config"
	"github.com/lumenbank/apiserver/internal/cache"
	"github.com/lumenbank/apiserver/internal/handlers"
	"github.com/lumenbank/apiserver/internal/mq"
	"github.com/lumenbank/apiserver/internal/services"
	"github.com/lumenbank/apiserver/internal/session"
	"github.com/lumenbank/apiserver/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Server wraps the HTTP server, its router and everything they hold open.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     log.Logger
	closers    []func() error
}

// New opens the configured store, session store, broker and object
// storage and builds the API router on top of them.
func New(ctx context.Context, cfg config.Config, logger log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{logger: logger}
	fail := func(err error) (*Server, error) {
		s.close()
		return nil, err
	}

	repos, err := OpenRepositories(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	s.closers = append(s.closers, repos.Close)

	var rdb *redis.Client
	if cfg.Session.Store == "redis" || cfg.History.CacheTTL > 0 {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fail(fmt.Errorf("redis: %w", err))
		}
	}

	var sessions session.Store
	if cfg.Session.Store == "redis" {
		sessions = session.NewRedisStore(rdb, cfg.Session.TTL)
	} else {
		bunt, err := session.OpenBunt(cfg.Session.BuntPath, cfg.Session.TTL)
		if err != nil {
			return fail(err)
		}
		sessions = bunt
	}
	s.closers = append(s.closers, sessions.Close)

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		return fail(err)
	}
	if broker != nil {
		s.closers = append(s.closers, broker.Close)
	}

	objects, err := storage.Open(ctx, cfg.ObjectStorage)
	if err != nil {
		return fail(err)
	}
	if objects != nil {
		s.closers = append(s.closers, objects.Close)
	}

	history := services.NewHistoryService(repos.History, logger)
	if cfg.History.CacheTTL > 0 {
		history.WithCache(cache.NewHistoryCache(rdb, cfg.History.CacheTTL))
	}
	ledger := services.NewLedgerService(repos.Ledger, logger).WithHistory(history)
	if broker != nil {
		ledger.WithEvents(broker, cfg.MQ.LedgerChannel)
	}
	accounts := services.NewAccountService(repos.Accounts, logger).WithHistory(history)

	var archive services.ObjectStore
	if objects != nil {
		archive = objects
	}

	deps := Dependencies{
		Users:         services.NewUserService(repos.Users, logger),
		Sessions:      sessions,
		Accounts:      accounts,
		Ledger:        ledger,
		History:       history,
		Statements:    services.NewStatementService(accounts, history, archive, logger),
		Notifications: services.NewNotificationService(repos.Notifications, logger),
		BillSplits:    services.NewBillSplitService(repos.BillSplits, logger),
		Investments:   services.NewInvestmentService(repos.Investments, logger),
	}
	s.router = NewRouter(cfg.Session, deps, logger)
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Dependencies are the services the API routes call into.
type Dependencies struct {
	Users         *services.UserService
	Sessions      session.Store
	Accounts      *services.AccountService
	Ledger        *services.LedgerService
	History       *services.HistoryService
	Statements    *services.StatementService
	Notifications *services.NotificationService
	BillSplits    *services.BillSplitService
	Investments   *services.InvestmentService
}

// NewRouter mounts every API route on a chi router.
func NewRouter(sessionCfg config.SessionConfig, deps Dependencies, logger log.Logger) *chi.Mux {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	auth := handlers.NewAuthHandler(deps.Users, deps.Sessions, sessionCfg, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		handlers.RequestLogger(log.With(logger, "component", "http")),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, auth)
	})
	router.Route("/accounts", func(r chi.Router) {
		handlers.AccountRouter(r, handlers.NewAccountHandler(deps.Accounts, logger), auth.RequireAuth)
	})
	router.Route("/transactions", func(r chi.Router) {
		handlers.TransactionRouter(r, handlers.NewTransactionHandler(deps.Ledger, deps.History, deps.Statements, logger), auth.RequireAuth)
	})
	router.Route("/notifications", func(r chi.Router) {
		handlers.NotificationRouter(r, handlers.NewNotificationHandler(deps.Notifications, logger), auth.RequireAuth)
	})
	router.Route("/bill-splits", func(r chi.Router) {
		handlers.BillSplitRouter(r, handlers.NewBillSplitHandler(deps.BillSplits, logger), auth.RequireAuth)
	})
	router.Route("/investments", func(r chi.Router) {
		handlers.InvestmentRouter(r, handlers.NewInvestmentHandler(deps.Investments, logger), auth.RequireAuth)
	})
	return router
}

// Router exposes the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and then closes the stores.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Log("msg", "close", "err", err)
		}
	}
	s.closers = nil
}
