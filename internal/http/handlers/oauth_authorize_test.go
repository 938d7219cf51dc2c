package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojane/internal/app"
	"github.com/dropDatabas3/hellojane/internal/domain/repository"
)

func authorizeURL(params url.Values) string {
	return "/auth/authorize?" + params.Encode()
}

func baseAuthorizeParams() url.Values {
	return url.Values{
		"client_id":     {"web"},
		"response_type": {"code"},
		"redirect_uri":  {"https://app.example/cb"},
		"scope":         {"user-read-private"},
		"state":         {"xyz"},
	}
}

// loggedInRequest arma un GET con cookie de sesión de login válida.
func loggedInRequest(t *testing.T, c *app.Container, acc *repository.Account, target string) *http.Request {
	t.Helper()
	sid, err := newLoginSession(context.Background(), c, acc.ID)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.AddCookie(&http.Cookie{Name: c.Policy.SessionCookieName, Value: sid})
	return req
}

func TestAuthorize_NoSessionRedirectsToLogin(t *testing.T) {
	c, _ := newTestContainer(t)
	mustClient(t, c, "web", "s3cret", []string{"https://app.example/cb"})
	h := NewOAuthAuthorizeHandler(c)

	params := baseAuthorizeParams()
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, authorizeURL(params), nil))

	require.Equal(t, http.StatusFound, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	// El query original viaja completo para retomar el flujo.
	assert.Equal(t, params, loc.Query())
}

func TestAuthorize_MintsRedeemableCode(t *testing.T) {
	c, _ := newTestContainer(t)
	acc := mustAccount(t, c, "alice", "pw123", "staff")
	mustClient(t, c, "web", "s3cret", []string{"https://app.example/cb"})
	h := NewOAuthAuthorizeHandler(c)

	rr := httptest.NewRecorder()
	h(rr, loggedInRequest(t, c, acc, authorizeURL(baseAuthorizeParams())))

	require.Equal(t, http.StatusFound, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "app.example", loc.Host)
	assert.Equal(t, "xyz", loc.Query().Get("state"))

	code := loc.Query().Get("code")
	require.NotEmpty(t, code)

	rec, err := c.Codes.Take(context.Background(), code)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, acc.ID.String(), rec.UserID)
	assert.Equal(t, "user-read-private", rec.Scope)
	assert.Equal(t, "https://app.example/cb", rec.RedirectURI)
}

func TestAuthorize_ImplicitTokenInRedirect(t *testing.T) {
	c, _ := newTestContainer(t)
	acc := mustAccount(t, c, "alice", "pw123", "staff")
	mustClient(t, c, "web", "s3cret", []string{"https://app.example/cb"})
	h := NewOAuthAuthorizeHandler(c)

	params := baseAuthorizeParams()
	params.Set("response_type", "token")
	rr := httptest.NewRecorder()
	h(rr, loggedInRequest(t, c, acc, authorizeURL(params)))

	require.Equal(t, http.StatusFound, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)

	access := loc.Query().Get("access_token")
	require.NotEmpty(t, access)
	assert.Equal(t, "bearer", loc.Query().Get("token_type"))
	assert.Equal(t, "xyz", loc.Query().Get("state"))

	claims, err := c.Codec.Decode(access)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, []string{"user-read-private"}, claims.Scopes)
}

func TestAuthorize_RejectsUnregisteredRedirect(t *testing.T) {
	c, _ := newTestContainer(t)
	mustClient(t, c, "web", "s3cret", []string{"https://app.example/cb"})
	h := NewOAuthAuthorizeHandler(c)

	params := baseAuthorizeParams()
	params.Set("redirect_uri", "https://evil.example/cb")
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, authorizeURL(params), nil))

	// Error JSON, nunca redirect a un URI no registrado.
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid_request")
}

func TestAuthorize_RejectsUnparseableRedirect(t *testing.T) {
	c, _ := newTestContainer(t)
	// Registrado con un byte de control: AllowsRedirect lo acepta pero
	// url.Parse no.
	mustClient(t, c, "web", "s3cret", []string{"https://app.example/cb\x7f"})
	h := NewOAuthAuthorizeHandler(c)

	params := baseAuthorizeParams()
	params.Set("redirect_uri", "https://app.example/cb\x7f")
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, authorizeURL(params), nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid_request")
}

func TestAuthorize_RejectsUnknownScope(t *testing.T) {
	c, _ := newTestContainer(t)
	mustClient(t, c, "web", "s3cret", []string{"https://app.example/cb"})
	h := NewOAuthAuthorizeHandler(c)

	params := baseAuthorizeParams()
	params.Set("scope", "user-read-private galaxy-admin")
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, authorizeURL(params), nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "galaxy-admin")
}

func TestAuthorize_OnlyS256Challenge(t *testing.T) {
	c, _ := newTestContainer(t)
	mustClient(t, c, "web", "s3cret", []string{"https://app.example/cb"})
	h := NewOAuthAuthorizeHandler(c)

	params := baseAuthorizeParams()
	params.Set("code_challenge_method", "plain")
	params.Set("code_challenge", "abc")
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, authorizeURL(params), nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "S256"))
}

func TestAuthorize_ChallengeStoredWithCode(t *testing.T) {
	c, _ := newTestContainer(t)
	acc := mustAccount(t, c, "alice", "pw123", "staff")
	mustClient(t, c, "web", "s3cret", []string{"https://app.example/cb"})
	h := NewOAuthAuthorizeHandler(c)

	params := baseAuthorizeParams()
	params.Set("code_challenge_method", "S256")
	params.Set("code_challenge", "h4sh-del-verifier")
	rr := httptest.NewRecorder()
	h(rr, loggedInRequest(t, c, acc, authorizeURL(params)))

	require.Equal(t, http.StatusFound, rr.Code)
	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)

	rec, err := c.Codes.Take(context.Background(), loc.Query().Get("code"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "h4sh-del-verifier", rec.CodeChallenge)
}
