package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/order-pipeline/internal/model"
)

// ProductsRepository defines persistence for the products table. Reads
// return (nil, nil) when the row does not exist.
type ProductsRepository interface {
	GetByID(ctx context.Context, id string) (*model.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]model.Product, error)
	GetByIDsTx(ctx context.Context, tx *sqlx.Tx, ids []string) ([]model.Product, error)
	List(ctx context.Context) ([]model.Product, error)

	Insert(ctx context.Context, p model.Product) error
	Update(ctx context.Context, p model.Product) error
	Delete(ctx context.Context, id string) error

	// GetForUpdate takes an exclusive row lock held until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Product, error)

	// DeductStock subtracts quantity from stock. Callers must hold the row
	// lock and have verified stock >= quantity.
	DeductStock(ctx context.Context, tx *sqlx.Tx, id string, quantity int) error
}

type ProductsRepositoryImpl struct {
	db *sqlx.DB
}

func NewProductsRepository(db *sqlx.DB) *ProductsRepositoryImpl {
	return &ProductsRepositoryImpl{db: db}
}

var _ ProductsRepository = (*ProductsRepositoryImpl)(nil)

const productColumns = `id, name, price, stock, created_at, updated_at`

func (r *ProductsRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	err := r.db.GetContext(ctx, &p, `
		SELECT `+productColumns+` FROM products WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductsRepositoryImpl) GetByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`SELECT `+productColumns+` FROM products WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	q = r.db.Rebind(q)

	var products []model.Product
	err = r.db.SelectContext(ctx, &products, q, args...)
	return products, err
}

func (r *ProductsRepositoryImpl) GetByIDsTx(ctx context.Context, tx *sqlx.Tx, ids []string) ([]model.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`SELECT `+productColumns+` FROM products WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	q = tx.Rebind(q)

	var products []model.Product
	err = tx.SelectContext(ctx, &products, q, args...)
	return products, err
}

func (r *ProductsRepositoryImpl) List(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.SelectContext(ctx, &products, `
		SELECT `+productColumns+` FROM products ORDER BY created_at ASC
	`)
	return products, err
}

func (r *ProductsRepositoryImpl) Insert(ctx context.Context, p model.Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, stock, created_at, updated_at)
		VALUES (?, ?, ?, ?, NOW(), NOW())
	`, p.ID, p.Name, p.Price, p.Stock)
	return err
}

func (r *ProductsRepositoryImpl) Update(ctx context.Context, p model.Product) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE products SET name = ?, price = ?, stock = ?, updated_at = NOW() WHERE id = ?
	`, p.Name, p.Price, p.Stock, p.ID)
	return err
}

func (r *ProductsRepositoryImpl) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	return err
}

func (r *ProductsRepositoryImpl) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Product, error) {
	var p model.Product
	err := tx.GetContext(ctx, &p, `
		SELECT `+productColumns+` FROM products WHERE id = ? FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProductsRepositoryImpl) DeductStock(ctx context.Context, tx *sqlx.Tx, id string, quantity int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE products SET stock = stock - ?, updated_at = NOW() WHERE id = ?
	`, quantity, id)
	return err
}
