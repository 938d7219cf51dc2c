// Package codes es el storage efímero de authorization codes.
//
// Cada code vive 5 minutos y se consume exactamente una vez: Take delega
// en el TakeDel atómico del cache, así dos redenciones concurrentes no
// pueden tener éxito las dos.
package codes

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dropDatabas3/hellojane/internal/cache"
	tokens "github.com/dropDatabas3/hellojane/internal/security/token"
)

// TTL fijo de los codes (igual que siempre: 5 minutos).
const TTL = 5 * time.Minute

const keyPrefix = "code:"

// Record es lo que el authorize endpoint deja registrado para el canje.
type Record struct {
	UserID        string `json:"user_id"`
	Scope         string `json:"scope"`
	RedirectURI   string `json:"redirect_uri"`
	CodeChallenge string `json:"code_challenge,omitempty"`
}

type Store struct {
	cache cache.Client
	ttl   time.Duration
}

func New(c cache.Client) *Store {
	return &Store{cache: c, ttl: TTL}
}

// NewCode genera un code opaco de 256 bits, URL-safe.
// Con esa entropía la colisión no es un caso diseñado; el overwrite en
// Put queda indefinido a propósito.
func NewCode() (string, error) {
	return tokens.GenerateOpaqueToken(32)
}

// Put guarda el record bajo el hash del code (el code en claro nunca
// toca el cache).
func (s *Store) Put(ctx context.Context, code string, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, keyPrefix+tokens.SHA256Base64URL(code), b, s.ttl); err != nil {
		return fmt.Errorf("codes: put: %w", err)
	}
	return nil
}

// Take consume el code: fetch+delete en una sola operación.
// Code desconocido o expirado retorna (nil, nil); el caller lo mapea a
// invalid_grant.
func (s *Store) Take(ctx context.Context, code string) (*Record, error) {
	b, err := s.cache.TakeDel(ctx, keyPrefix+tokens.SHA256Base64URL(code))
	if cache.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("codes: take: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		// Payload corrupto cuenta como code inválido, no como error de infra.
		return nil, nil
	}
	return &rec, nil
}
