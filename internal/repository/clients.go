package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/order-pipeline/internal/model"
)

type ClientsRepository interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Client, error)
	GetByID(ctx context.Context, id string) (*model.Client, error)
}

type ClientsRepositoryImpl struct {
	db *sqlx.DB
}

func NewClientsRepository(db *sqlx.DB) *ClientsRepositoryImpl {
	return &ClientsRepositoryImpl{db: db}
}

var _ ClientsRepository = (*ClientsRepositoryImpl)(nil)

func (r *ClientsRepositoryImpl) GetByAPIKey(ctx context.Context, apiKey string) (*model.Client, error) {
	var c model.Client
	err := r.db.GetContext(ctx, &c, `
		SELECT id, name, email, api_key, role, created_at, updated_at
		  FROM clients
		 WHERE api_key = ? LIMIT 1
	`, apiKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ClientsRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Client, error) {
	var c model.Client
	err := r.db.GetContext(ctx, &c, `
		SELECT id, name, email, api_key, role, created_at, updated_at
		  FROM clients
		 WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
