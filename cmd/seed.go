package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jmehdipour/order-pipeline/internal/config"
	"github.com/jmehdipour/order-pipeline/internal/db"
	"github.com/jmehdipour/order-pipeline/internal/model"
	"github.com/jmehdipour/order-pipeline/internal/util"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo clients and products",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// 2) connect MySQL
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

		log.Println(">> Seeding demo clients and products...")

		if err := seedClients(sqlDB); err != nil {
			return err
		}
		if err := seedProducts(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// seedClients inserts deterministic demo clients (idempotent on api_key).
func seedClients(dbx *sqlx.DB) error {
	clients := []model.Client{
		{
			Name:   "Acme Corp",
			Email:  "orders@acme.example",
			APIKey: "11111111111111111111111111111111",
			Role:   model.RoleClient,
		},
		{
			Name:   "Foobar LLC",
			Email:  "ops@foobar.example",
			APIKey: "22222222222222222222222222222222",
			Role:   model.RoleClient,
		},
		{
			Name:   "Back Office",
			Email:  "admin@ordpipe.example",
			APIKey: "99999999999999999999999999999999",
			Role:   model.RoleAdmin,
		},
	}

	// idempotent upsert based on api_key (UNIQUE)
	const q = `
INSERT INTO clients
    (id, name, email, api_key, role, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name       = VALUES(name),
    email      = VALUES(email),
    role       = VALUES(role),
    updated_at = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	for _, c := range clients {
		if _, err := tx.Exec(q, util.New(), c.Name, c.Email, c.APIKey, string(c.Role), now, now); err != nil {
			return fmt.Errorf("insert client %q: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clients: %w", err)
	}
	return nil
}

// seedProducts inserts demo products (idempotent on name).
func seedProducts(dbx *sqlx.DB) error {
	products := []model.Product{
		{Name: "Mechanical Keyboard", Price: price("89.90"), Stock: 50},
		{Name: "USB-C Dock", Price: price("149.00"), Stock: 20},
		{Name: "27in Monitor", Price: price("319.99"), Stock: 10},
		{Name: "Webcam", Price: price("59.50"), Stock: 100},
		{Name: "Limited Edition Mouse", Price: price("249.00"), Stock: 2},
	}

	const q = `
INSERT INTO products
    (id, name, price, stock, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    price      = VALUES(price),
    stock      = VALUES(stock),
    updated_at = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	for _, p := range products {
		if _, err := tx.Exec(q, util.New(), p.Name, p.Price, p.Stock, now, now); err != nil {
			return fmt.Errorf("insert product %q: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit products: %w", err)
	}
	return nil
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }
