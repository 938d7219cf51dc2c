package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojane/internal/app"
	"github.com/dropDatabas3/hellojane/internal/cache"
	"github.com/dropDatabas3/hellojane/internal/codes"
	"github.com/dropDatabas3/hellojane/internal/domain/repository"
	"github.com/dropDatabas3/hellojane/internal/jwt"
	"github.com/dropDatabas3/hellojane/internal/rate"
	"github.com/dropDatabas3/hellojane/internal/scopes"
	"github.com/dropDatabas3/hellojane/internal/security/password"
	"github.com/dropDatabas3/hellojane/internal/store/memory"
)

// Hashear con parámetros livianos: los tests no miden resistencia a GPUs.
var testHashParams = password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func newTestContainer(t *testing.T) (*app.Container, *memory.Store) {
	t.Helper()
	st := memory.New()
	cc := cache.NewMemory(2 * time.Minute)
	c := &app.Container{
		Accounts: st.Accounts(),
		Clients:  st.Clients(),
		Sessions: st.Sessions(),
		Cache:    cc,
		Codes:    codes.New(cc),
		Codec:    jwt.NewCodec([]byte("test-secret")),
		Scopes:   scopes.New(scopes.DefaultTable()),
		Limiter:  rate.Noop{},
		Policy: app.Policy{
			MaxSessions:       5,
			AccessTTL:         15 * time.Minute,
			ClientTTL:         24 * time.Hour,
			RefreshTTL:        720 * time.Hour,
			SessionCookieName: "hj_session",
			SessionCookieTTL:  12 * time.Hour,
		},
	}
	return c, st
}

func mustAccount(t *testing.T, c *app.Container, username, pass, role string) *repository.Account {
	t.Helper()
	hash, err := password.Hash(testHashParams, pass)
	require.NoError(t, err)
	acc, err := c.Accounts.Create(context.Background(), repository.CreateAccountInput{
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	})
	require.NoError(t, err)
	return acc
}

func mustClient(t *testing.T, c *app.Container, clientID, secret string, redirects []string) *repository.Client {
	t.Helper()
	cl, err := c.Clients.Create(context.Background(), repository.CreateClientInput{
		ClientID:     clientID,
		ClientSecret: secret,
		Name:         clientID,
		RedirectURIs: redirects,
		Scopes:       []string{"user-read-private"},
	})
	require.NoError(t, err)
	return cl
}

// postForm arma un POST form-encoded con el User-Agent dado.
func postForm(path string, form url.Values, ua string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.PostForm = form
	req.Form = form
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	return req
}
