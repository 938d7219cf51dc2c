// Package cache provee la abstracción de key-value con TTL.
//
// Backends:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
//
// TakeDel existe porque los authorization codes son de un solo uso: el
// fetch y el delete tienen que ser UNA operación. Un Get seguido de un
// Delete separado admite la carrera donde dos redenciones concurrentes
// leen el valor antes de que alguna lo borre.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound: la key no existe o ya expiró.
var ErrNotFound = errors.New("cache: key not found")

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set guarda un valor con TTL. ttl == 0 no expira.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete elimina una key. Idempotente.
	Delete(ctx context.Context, key string) error

	// TakeDel obtiene y elimina atómicamente. Retorna ErrNotFound si la
	// key no existe; bajo concurrencia a lo sumo un caller recibe el valor.
	TakeDel(ctx context.Context, key string) ([]byte, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}

// IsNotFound reporta si el error es por key inexistente.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
