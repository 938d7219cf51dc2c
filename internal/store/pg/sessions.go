package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/hellojane/internal/domain/repository"
)

type sessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) repository.SessionRepository {
	return &sessionRepo{pool: pool}
}

const sessionCols = `id, account_id, refresh_token, user_agent, client_ip, scope, created_at, expires_at`

func scanSession(row pgx.Row) (*repository.RefreshSession, error) {
	var s repository.RefreshSession
	if err := row.Scan(&s.ID, &s.AccountID, &s.RefreshToken, &s.UserAgent, &s.ClientIP, &s.Scope, &s.CreatedAt, &s.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func insertSession(ctx context.Context, tx pgx.Tx, in repository.CreateSessionInput) (*repository.RefreshSession, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO refresh_session (id, account_id, refresh_token, user_agent, client_ip, scope, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), $7)
		RETURNING `+sessionCols,
		uuid.New(), in.AccountID, uuid.New(), in.UserAgent, in.ClientIP, in.Scope, in.ExpiresAt,
	)
	return scanSession(row)
}

// CreateWithEviction aplica la higiene completa en UNA transacción:
//  1. borra sesiones de la cuenta con el mismo User-Agent (mismo device
//     que vuelve a loguearse: no acumulamos duplicados)
//  2. borra las más viejas dejando lugar para la nueva (cap por cuenta)
//  3. inserta la nueva sesión
//
// Si el request se abandona a mitad de camino, el rollback deja todo como
// estaba: nunca queda una sesión a medio crear ni un evict sin insert.
func (r *sessionRepo) CreateWithEviction(ctx context.Context, in repository.CreateSessionInput, maxPerAccount int) (*repository.RefreshSession, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("create session: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM refresh_session WHERE account_id = $1 AND user_agent = $2`,
		in.AccountID, in.UserAgent,
	); err != nil {
		return nil, fmt.Errorf("create session: evict same ua: %w", err)
	}

	// Conservamos las maxPerAccount-1 más nuevas; la nueva completa el cap.
	if _, err := tx.Exec(ctx, `
		DELETE FROM refresh_session
		WHERE id IN (
			SELECT id FROM refresh_session
			WHERE account_id = $1
			ORDER BY created_at DESC
			OFFSET $2
		)`,
		in.AccountID, maxPerAccount-1,
	); err != nil {
		return nil, fmt.Errorf("create session: evict overflow: %w", err)
	}

	s, err := insertSession(ctx, tx, in)
	if err != nil {
		return nil, fmt.Errorf("create session: insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("create session: commit: %w", err)
	}
	return s, nil
}

func (r *sessionRepo) GetByToken(ctx context.Context, token uuid.UUID) (*repository.RefreshSession, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionCols+` FROM refresh_session WHERE refresh_token = $1`, token)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get session by token: %w", err)
	}
	return s, nil
}

// Rotate borra la sesión vieja y crea la nueva en una transacción.
// Commit = el token viejo dejó de existir; no hay ventana de replay.
func (r *sessionRepo) Rotate(ctx context.Context, oldID uuid.UUID, in repository.CreateSessionInput) (*repository.RefreshSession, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("rotate session: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM refresh_session WHERE id = $1`, oldID); err != nil {
		return nil, fmt.Errorf("rotate session: delete old: %w", err)
	}
	s, err := insertSession(ctx, tx, in)
	if err != nil {
		return nil, fmt.Errorf("rotate session: insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("rotate session: commit: %w", err)
	}
	return s, nil
}

func (r *sessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM refresh_session WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *sessionRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]repository.RefreshSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionCols+` FROM refresh_session WHERE account_id = $1 ORDER BY created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []repository.RefreshSession
	for rows.Next() {
		var s repository.RefreshSession
		if err := rows.Scan(&s.ID, &s.AccountID, &s.RefreshToken, &s.UserAgent, &s.ClientIP, &s.Scope, &s.CreatedAt, &s.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionRepo) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_session WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
