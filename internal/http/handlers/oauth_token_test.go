package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojane/internal/codes"
	"github.com/dropDatabas3/hellojane/internal/scopes"
	tokens "github.com/dropDatabas3/hellojane/internal/security/token"
)

func decodeTokens(t *testing.T, rr *httptest.ResponseRecorder) Tokens {
	t.Helper()
	var out Tokens
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestPasswordGrant_ScopesMatchAuthorizer(t *testing.T) {
	c, _ := newTestContainer(t)
	acc := mustAccount(t, c, "alice", "pw123", "staff")
	h := NewOAuthTokenHandler(c)

	rr := httptest.NewRecorder()
	h(rr, postForm("/auth/token", url.Values{
		"grant_type": {"password"},
		"username":   {"alice"},
		"password":   {"pw123"},
	}, "firefox"))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	got := decodeTokens(t, rr)
	assert.Equal(t, "bearer", got.TokenType)
	assert.NotEmpty(t, got.RefreshToken)
	assert.Contains(t, got.Scope, "staff")

	claims, err := c.Codec.Decode(got.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, c.Scopes.ScopesFor(scopes.AccountPrincipal(acc)), claims.Scopes)
}

func TestPasswordGrant_NoUsernameEnumeration(t *testing.T) {
	c, _ := newTestContainer(t)
	mustAccount(t, c, "alice", "pw123", "staff")
	h := NewOAuthTokenHandler(c)

	call := func(user string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h(rr, postForm("/auth/token", url.Values{
			"grant_type": {"password"},
			"username":   {user},
			"password":   {"wrong"},
		}, "firefox"))
		return rr
	}

	existing := call("alice")
	ghost := call("nobody")

	assert.Equal(t, http.StatusBadRequest, existing.Code)
	assert.Equal(t, ghost.Code, existing.Code)
	// Body idéntico byte a byte: nada distingue usuario inexistente de
	// password incorrecta.
	assert.Equal(t, ghost.Body.String(), existing.Body.String())
}

func TestPasswordGrant_InactiveAccount(t *testing.T) {
	c, st := newTestContainer(t)
	acc := mustAccount(t, c, "alice", "pw123", "staff")
	st.SetActive(acc.ID, false)
	h := NewOAuthTokenHandler(c)

	rr := httptest.NewRecorder()
	h(rr, postForm("/auth/token", url.Values{
		"username": {"alice"},
		"password": {"pw123"},
	}, "firefox"))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "inactive_account")
}

func TestPasswordGrant_RequireClientIDPolicy(t *testing.T) {
	c, _ := newTestContainer(t)
	c.Policy.RequireClientID = true
	mustAccount(t, c, "alice", "pw123", "staff")
	h := NewOAuthTokenHandler(c)

	rr := httptest.NewRecorder()
	h(rr, postForm("/auth/token", url.Values{
		"username": {"alice"},
		"password": {"pw123"},
	}, "firefox"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	mustClient(t, c, "web", "s3cret", nil)
	rr = httptest.NewRecorder()
	h(rr, postForm("/auth/token", url.Values{
		"username":  {"alice"},
		"password":  {"pw123"},
		"client_id": {"web"},
	}, "firefox"))
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestPasswordGrant_SessionCapAcrossLogins(t *testing.T) {
	c, _ := newTestContainer(t)
	acc := mustAccount(t, c, "alice", "pw123", "staff")
	h := NewOAuthTokenHandler(c)

	login := func(ua string) {
		rr := httptest.NewRecorder()
		h(rr, postForm("/auth/token", url.Values{
			"username": {"alice"},
			"password": {"pw123"},
		}, ua))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	for i := 0; i < 6; i++ {
		login("device-" + string(rune('a'+i)))
	}
	live, err := c.Sessions.ListByAccount(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Len(t, live, 5, "el sexto login deja exactamente 5 sesiones")

	// repetir un device no suma
	login("device-f")
	live, err = c.Sessions.ListByAccount(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Len(t, live, 5)
}

func TestUnsupportedGrantType(t *testing.T) {
	c, _ := newTestContainer(t)
	h := NewOAuthTokenHandler(c)

	rr := httptest.NewRecorder()
	h(rr, postForm("/auth/token", url.Values{"grant_type": {"device_code"}}, ""))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unsupported_grant_type")
}

func TestClientCredentials(t *testing.T) {
	c, _ := newTestContainer(t)
	mustClient(t, c, "robot", "s3cret", nil)
	h := NewOAuthTokenHandler(c)

	// por body
	rr := httptest.NewRecorder()
	h(rr, postForm("/auth/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"robot"},
		"client_secret": {"s3cret"},
	}, ""))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	got := decodeTokens(t, rr)
	assert.Empty(t, got.RefreshToken, "client_credentials no emite refresh")

	claims, err := c.Codec.Decode(got.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "robot", claims.Subject)
	assert.Equal(t, []string{"user-read-private"}, claims.Scopes)

	// por Basic auth
	req := postForm("/auth/token", url.Values{"grant_type": {"client_credentials"}}, "")
	req.SetBasicAuth("robot", "s3cret")
	rr = httptest.NewRecorder()
	h(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// secret incorrecto
	rr = httptest.NewRecorder()
	h(rr, postForm("/auth/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"robot"},
		"client_secret": {"nope"},
	}, ""))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid_client")
}

func TestAuthorizationCode_PKCE(t *testing.T) {
	c, _ := newTestContainer(t)
	acc := mustAccount(t, c, "alice", "pw123", "staff")
	mustClient(t, c, "web", "s3cret", []string{"https://app.example/cb"})
	h := NewOAuthTokenHandler(c)

	verifier := "abc"
	challenge := tokens.SHA256Base64URL(verifier)

	issue := func() string {
		code, err := codes.NewCode()
		require.NoError(t, err)
		require.NoError(t, c.Codes.Put(context.Background(), code, codes.Record{
			UserID:        acc.ID.String(),
			Scope:         "user-read-private",
			RedirectURI:   "https://app.example/cb",
			CodeChallenge: challenge,
		}))
		return code
	}

	redeem := func(code, verifier string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h(rr, postForm("/auth/token", url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"redirect_uri":  {"https://app.example/cb"},
			"client_id":     {"web"},
			"code_verifier": {verifier},
		}, "firefox"))
		return rr
	}

	// verifier correcto
	rr := redeem(issue(), verifier)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decodeTokens(t, rr)
	assert.Equal(t, "user-read-private", got.Scope)
	assert.NotEmpty(t, got.RefreshToken)

	claims, err := c.Codec.Decode(got.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-read-private"}, claims.Scopes)

	// verifier incorrecto
	rr = redeem(issue(), "not-abc")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid_grant")
}

func TestAuthorizationCode_BasicAuthCredentials(t *testing.T) {
	c, _ := newTestContainer(t)
	acc := mustAccount(t, c, "alice", "pw123", "staff")
	mustClient(t, c, "web", "s3cret", []string{"https://app.example/cb"})
	h := NewOAuthTokenHandler(c)

	issue := func() string {
		code, err := codes.NewCode()
		require.NoError(t, err)
		require.NoError(t, c.Codes.Put(context.Background(), code, codes.Record{
			UserID:      acc.ID.String(),
			Scope:       "user-read-private",
			RedirectURI: "https://app.example/cb",
		}))
		return code
	}

	// Credenciales por Basic auth, sin client_id ni client_secret en el
	// body, como hacen los clientes confidenciales.
	req := postForm("/auth/token", url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {issue()},
		"redirect_uri": {"https://app.example/cb"},
	}, "firefox")
	req.SetBasicAuth("web", "s3cret")

	rr := httptest.NewRecorder()
	h(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	got := decodeTokens(t, rr)
	assert.NotEmpty(t, got.RefreshToken)
	assert.Equal(t, "user-read-private", got.Scope)

	// Secret incorrecto por Basic auth tampoco pasa.
	req = postForm("/auth/token", url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {issue()},
		"redirect_uri": {"https://app.example/cb"},
	}, "firefox")
	req.SetBasicAuth("web", "nope")

	rr = httptest.NewRecorder()
	h(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid_client")
}

func TestAuthorizationCode_SingleUse(t *testing.T) {
	c, _ := newTestContainer(t)
	acc := mustAccount(t, c, "alice", "pw123", "staff")
	mustClient(t, c, "web", "s3cret", []string{"https://app.example/cb"})
	h := NewOAuthTokenHandler(c)

	code, err := codes.NewCode()
	require.NoError(t, err)
	require.NoError(t, c.Codes.Put(context.Background(), code, codes.Record{
		UserID:      acc.ID.String(),
		Scope:       "user-read-private",
		RedirectURI: "https://app.example/cb",
	}))

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {"https://app.example/cb"},
		"client_id":     {"web"},
		"client_secret": {"s3cret"},
	}

	// Dos canjes concurrentes: exactamente uno gana.
	results := make([]int, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rr := httptest.NewRecorder()
			h(rr, postForm("/auth/token", form, "firefox"))
			results[i] = rr.Code
		}(i)
	}
	wg.Wait()

	ok, bad := 0, 0
	for _, code := range results {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusBadRequest:
			bad++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, bad)
}

func TestAuthorizationCode_RedirectMismatch(t *testing.T) {
	c, _ := newTestContainer(t)
	acc := mustAccount(t, c, "alice", "pw123", "staff")
	mustClient(t, c, "web", "s3cret", []string{"https://app.example/cb"})
	h := NewOAuthTokenHandler(c)

	code, err := codes.NewCode()
	require.NoError(t, err)
	require.NoError(t, c.Codes.Put(context.Background(), code, codes.Record{
		UserID:      acc.ID.String(),
		Scope:       "user-read-private",
		RedirectURI: "https://app.example/cb",
	}))

	rr := httptest.NewRecorder()
	h(rr, postForm("/auth/token", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {"https://evil.example/cb"},
		"client_id":     {"web"},
		"client_secret": {"s3cret"},
	}, "firefox"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid_grant")
}
