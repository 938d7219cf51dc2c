package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Roles de cuenta. La jerarquía (staff ⊂ developer ⊂ admin) vive en el
// paquete scopes; acá solo se persisten los nombres.
const (
	RoleUser      = "user"
	RoleStaff     = "staff"
	RoleDeveloper = "developer"
	RoleAdmin     = "admin"
)

// Account es un usuario humano. Inmutable durante el request.
type Account struct {
	ID           uuid.UUID
	Email        string
	Username     string
	PasswordHash *string // PHC string (argon2id); nil para cuentas sin password
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

type CreateAccountInput struct {
	Email        string
	Username     string
	PasswordHash string
	Role         string
}

// AccountRepository resuelve cuentas por username/id (AccountDirectory).
type AccountRepository interface {
	Create(ctx context.Context, in CreateAccountInput) (*Account, error)
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
}
