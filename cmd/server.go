/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumenbank/apiserver/config"
	"github.com/lumenbank/apiserver/internal/admin"
	"github.com/lumenbank/apiserver/internal/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the lumen API server",
	Long: `Starts the lumen API server and the admin server (metrics, pprof). Usage:

	lumen server
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv, err := server.New(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}

		adminServer := admin.NewServer(cfg.AdminPort)
		go func() {
			logger.Log("admin", fmt.Sprintf("Starting admin service on %s", adminServer.BindAddress()))
			if err := adminServer.Listen(); err != nil {
				logger.Log("admin", "shutting down", "err", err)
			}
		}()

		errs := make(chan error, 1)
		go func() {
			logger.Log("transport", "HTTP", "addr", srv.Addr())
			errs <- srv.Start()
		}()

		select {
		case err = <-errs:
		case <-ctx.Done():
			logger.Log("msg", "shutting down", "signal", ctx.Err())
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := adminServer.Shutdown(shutdownCtx); serr != nil {
			logger.Log("admin", "shutdown", "err", serr)
		}
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			logger.Log("msg", "shutdown", "err", serr)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
