package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RefreshSession es el registro durable que permite canjear un refresh token
// opaco por un access token nuevo. Propiedad exclusiva del SessionRepository.
type RefreshSession struct {
	ID           uuid.UUID
	AccountID    uuid.UUID
	RefreshToken uuid.UUID
	UserAgent    string
	ClientIP     string
	Scope        string // space-joined
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

type CreateSessionInput struct {
	AccountID uuid.UUID
	UserAgent string
	ClientIP  string
	Scope     string
	ExpiresAt time.Time
}

// SessionRepository persiste refresh sessions.
//
// CreateWithEviction aplica la higiene de sesiones en una sola transacción:
// borra las sesiones de la cuenta con el mismo User-Agent (dedup de device),
// borra las más viejas para que queden a lo sumo maxPerAccount vivas tras el
// insert, y recién entonces inserta la nueva.
//
// Rotate borra la sesión vieja y crea la nueva atómicamente: el token viejo
// muere en el instante en que se emite el nuevo, aunque la respuesta se
// pierda en tránsito (trade-off asumido).
type SessionRepository interface {
	CreateWithEviction(ctx context.Context, in CreateSessionInput, maxPerAccount int) (*RefreshSession, error)
	GetByToken(ctx context.Context, token uuid.UUID) (*RefreshSession, error)
	Rotate(ctx context.Context, oldID uuid.UUID, in CreateSessionInput) (*RefreshSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]RefreshSession, error)
	DeleteExpired(ctx context.Context) (int, error)
}
