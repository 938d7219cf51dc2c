package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Modos de aplicación. En dev las allow-lists auxiliares quedan acotadas.
const (
	ClientModeDev  = "dev"
	ClientModeLive = "live"
)

// Client es una aplicación registrada (máquina). Read-only para el core.
type Client struct {
	ID           uuid.UUID
	ClientID     string
	ClientSecret string
	Name         string
	RedirectURIs []string
	// Scopes otorgados explícitamente para client_credentials.
	// Sin herencia de roles: una app no es una cuenta.
	Scopes    []string
	Mode      string
	CreatedAt time.Time
}

// AllowsRedirect reporta si uri está registrada para el client.
// Match exacto: nada de prefijos ni wildcards.
func (c *Client) AllowsRedirect(uri string) bool {
	for _, ru := range c.RedirectURIs {
		if ru == uri {
			return true
		}
	}
	return false
}

type CreateClientInput struct {
	ClientID     string
	ClientSecret string
	Name         string
	RedirectURIs []string
	Scopes       []string
	Mode         string
}

// ClientRepository resuelve client_id a aplicaciones (ClientRegistry).
type ClientRepository interface {
	Create(ctx context.Context, in CreateClientInput) (*Client, error)
	FindByClientID(ctx context.Context, clientID string) (*Client, error)
}
