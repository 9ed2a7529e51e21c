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
	"github.com/jmehdipour/order-pipeline/internal/logger"
	"github.com/jmehdipour/order-pipeline/internal/metrics"
	"github.com/jmehdipour/order-pipeline/internal/payment"
	"github.com/jmehdipour/order-pipeline/internal/rabbit"
	"github.com/jmehdipour/order-pipeline/internal/worker"
)

var paymentCmd = &cobra.Command{
	Use:   "payment",
	Short: "Run the payment worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)
		metrics.MustRegister(prometheus.DefaultRegisterer)

		if cfg.Payment.SuccessRate < 0 || cfg.Payment.SuccessRate > 1 {
			return fmt.Errorf("invalid payment success_rate: %v", cfg.Payment.SuccessRate)
		}

		// 2) broker connection
		conn, err := rabbit.Dial(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			return fmt.Errorf("rabbitmq connect: %w", err)
		}
		defer conn.Close()

		decider := payment.NewRandomDecider(cfg.Payment.SuccessRate, cfg.Payment.MinDelay, cfg.Payment.MaxDelay)
		w := worker.NewPaymentWorker(conn, decider, logger.L())

		// 3) graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf(">> payment worker started successRate=%v", cfg.Payment.SuccessRate)

		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
