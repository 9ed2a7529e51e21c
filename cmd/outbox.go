package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/order-pipeline/internal/config"
	"github.com/jmehdipour/order-pipeline/internal/db"
	"github.com/jmehdipour/order-pipeline/internal/repository"
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect the outbox table",
}

// outboxDeadCmd lists rows the relay gave up on. They stay in the table
// until an operator resolves them by hand.
var outboxDeadCmd = &cobra.Command{
	Use:   "dead",
	Short: "List outbox events that exhausted their publish attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		outboxRepo := repository.NewOutboxRepository(sqlDB)
		dead, err := outboxRepo.ListDead(ctx, cfg.Outbox.MaxAttempts)
		if err != nil {
			return fmt.Errorf("list dead events: %w", err)
		}

		if len(dead) == 0 {
			fmt.Println("no dead outbox events")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tATTEMPTS\tCREATED\tPAYLOAD")
		for _, ev := range dead {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				ev.ID, ev.EventType, ev.Attempts,
				ev.CreatedAt.Format(time.RFC3339), string(ev.Payload))
		}
		return w.Flush()
	},
}

func init() {
	outboxCmd.AddCommand(outboxDeadCmd)
}
