// Package app agrupa las dependencias compartidas por los handlers.
package app

import (
	"time"

	"github.com/dropDatabas3/hellojane/internal/cache"
	"github.com/dropDatabas3/hellojane/internal/codes"
	"github.com/dropDatabas3/hellojane/internal/domain/repository"
	"github.com/dropDatabas3/hellojane/internal/jwt"
	"github.com/dropDatabas3/hellojane/internal/rate"
	"github.com/dropDatabas3/hellojane/internal/scopes"
)

// Policy son los knobs de comportamiento que vienen de config.
type Policy struct {
	// RequireClientID exige client_id registrado en el password grant.
	RequireClientID bool
	// MaxSessions es el tope de refresh sessions vivas por cuenta.
	MaxSessions int

	AccessTTL  time.Duration
	ClientTTL  time.Duration
	RefreshTTL time.Duration

	SessionCookieName string
	SessionCookieTTL  time.Duration
	SecureCookies     bool
}

// Container se arma una vez en main y se inyecta en cada handler.
type Container struct {
	Accounts repository.AccountRepository
	Clients  repository.ClientRepository
	Sessions repository.SessionRepository

	Cache   cache.Client
	Codes   *codes.Store
	Codec   *jwt.Codec
	Scopes  *scopes.Authorizer
	Limiter rate.Limiter

	Policy Policy
}
