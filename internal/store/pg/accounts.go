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

type accountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) repository.AccountRepository {
	return &accountRepo{pool: pool}
}

const accountCols = `id, email, username, password_hash, role, is_active, created_at`

func scanAccount(row pgx.Row) (*repository.Account, error) {
	var a repository.Account
	if err := row.Scan(&a.ID, &a.Email, &a.Username, &a.PasswordHash, &a.Role, &a.IsActive, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *accountRepo) Create(ctx context.Context, in repository.CreateAccountInput) (*repository.Account, error) {
	role := in.Role
	if role == "" {
		role = repository.RoleUser
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO account (id, email, username, password_hash, role, is_active, created_at)
		VALUES ($1, $2, $3, NULLIF($4,''), $5, TRUE, NOW())
		RETURNING `+accountCols,
		uuid.New(), in.Email, in.Username, in.PasswordHash, role,
	)
	a, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (r *accountRepo) FindByUsername(ctx context.Context, username string) (*repository.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountCols+` FROM account WHERE username = $1`, username)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find account by username: %w", err)
	}
	return a, nil
}

func (r *accountRepo) FindByID(ctx context.Context, id uuid.UUID) (*repository.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountCols+` FROM account WHERE id = $1`, id)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return a, nil
}
