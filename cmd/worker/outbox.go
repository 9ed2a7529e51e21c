package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jmehdipour/order-pipeline/internal/config"
	"github.com/jmehdipour/order-pipeline/internal/db"
	"github.com/jmehdipour/order-pipeline/internal/logger"
	"github.com/jmehdipour/order-pipeline/internal/metrics"
	"github.com/jmehdipour/order-pipeline/internal/outbox"
	"github.com/jmehdipour/order-pipeline/internal/rabbit"
	"github.com/jmehdipour/order-pipeline/internal/repository"
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Run the outbox relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)
		metrics.MustRegister(prometheus.DefaultRegisterer)

		// 2) DB connection (MySQL)
		dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer dbx.Close()

		// 3) broker connection
		conn, err := rabbit.Dial(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			return fmt.Errorf("rabbitmq connect: %w", err)
		}
		defer conn.Close()

		relay := outbox.NewRelay(
			repository.NewOutboxRepository(dbx),
			conn,
			cfg.Outbox.PollInterval,
			cfg.Outbox.BatchSize,
			cfg.Outbox.MaxAttempts,
			logger.L(),
		)

		// 4) graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf(">> outbox relay started interval=%s batch=%d maxAttempts=%d",
			cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, cfg.Outbox.MaxAttempts)

		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
