package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/hellojane/internal/domain/repository"
)

type clientRepo struct {
	pool *pgxpool.Pool
}

func NewClientRepo(pool *pgxpool.Pool) repository.ClientRepository {
	return &clientRepo{pool: pool}
}

const clientCols = `id, client_id, client_secret, name, redirect_uris, scopes, mode, created_at`

func scanClient(row pgx.Row) (*repository.Client, error) {
	var c repository.Client
	if err := row.Scan(&c.ID, &c.ClientID, &c.ClientSecret, &c.Name, &c.RedirectURIs, &c.Scopes, &c.Mode, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *clientRepo) Create(ctx context.Context, in repository.CreateClientInput) (*repository.Client, error) {
	mode := in.Mode
	if mode == "" {
		mode = repository.ClientModeDev
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO application (id, client_id, client_secret, name, redirect_uris, scopes, mode, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING `+clientCols,
		uuid.New(), in.ClientID, in.ClientSecret, in.Name, in.RedirectURIs, in.Scopes, mode,
	)
	c, err := scanClient(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("create application: %w", err)
	}
	return c, nil
}

func (r *clientRepo) FindByClientID(ctx context.Context, clientID string) (*repository.Client, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+clientCols+` FROM application WHERE client_id = $1`, clientID)
	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return c, nil
}
