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
	"github.com/jmehdipour/order-pipeline/internal/rabbit"
	"github.com/jmehdipour/order-pipeline/internal/repository"
	"github.com/jmehdipour/order-pipeline/internal/worker"
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Run the inventory worker",
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

		w := worker.NewInventoryWorker(
			dbx,
			conn,
			repository.NewOrdersRepository(dbx),
			repository.NewProductsRepository(dbx),
			logger.L(),
		)

		// 4) graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf(">> inventory worker started")

		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
