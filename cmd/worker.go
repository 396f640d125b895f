/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/lumenbank/apiserver/config"
	"github.com/lumenbank/apiserver/internal/mq"
	"github.com/lumenbank/apiserver/internal/server"
	"github.com/lumenbank/apiserver/internal/services"
	"github.com/lumenbank/apiserver/internal/worker"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes ledger events and creates notifications",
	Long: `Subscribes to LEDGER_EVENTS_CHANNEL on the configured broker and
writes a notification for every committed transaction. Usage:

	MQ_DRIVER=rabbitmq lumen worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("the worker needs MQ_DRIVER set to rabbitmq or pubsub")
		}
		defer broker.Close()

		repos, err := server.OpenRepositories(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer repos.Close()

		notifications := services.NewNotificationService(repos.Notifications, logger)
		return worker.NewNotifier(broker, cfg.MQ.LedgerChannel, notifications, logger).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
