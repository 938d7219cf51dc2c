package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hellojane/internal/app"
	"github.com/dropDatabas3/hellojane/internal/domain/repository"
)

func mustSession(t *testing.T, c *app.Container, acc *repository.Account, ua string) *repository.RefreshSession {
	t.Helper()
	sess, err := c.Sessions.CreateWithEviction(context.Background(), repository.CreateSessionInput{
		AccountID: acc.ID,
		UserAgent: ua,
		ClientIP:  "127.0.0.1",
		Scope:     "staff user-read-private",
		ExpiresAt: time.Now().Add(time.Hour),
	}, c.Policy.MaxSessions)
	require.NoError(t, err)
	return sess
}

func refreshForm(token string) url.Values {
	return url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {token},
	}
}

func TestRefresh_RotatesAndInvalidatesOldToken(t *testing.T) {
	c, _ := newTestContainer(t)
	acc := mustAccount(t, c, "alice", "pw123", "staff")
	sess := mustSession(t, c, acc, "firefox")
	h := NewAuthRefreshHandler(c)

	rr := httptest.NewRecorder()
	h(rr, postForm("/auth/refresh", refreshForm(sess.RefreshToken.String()), "firefox"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	got := decodeTokens(t, rr)
	require.NotEmpty(t, got.RefreshToken)
	assert.NotEqual(t, sess.RefreshToken.String(), got.RefreshToken)
	assert.Equal(t, "staff user-read-private", got.Scope)

	// cookie httponly con el token nuevo
	var cookie *http.Cookie
	for _, ck := range rr.Result().Cookies() {
		if ck.Name == "refresh_token" {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, got.RefreshToken, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	// el viejo murió con la rotación
	rr = httptest.NewRecorder()
	h(rr, postForm("/auth/refresh", refreshForm(sess.RefreshToken.String()), "firefox"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid_grant")

	// el nuevo funciona exactamente una vez
	rr = httptest.NewRecorder()
	h(rr, postForm("/auth/refresh", refreshForm(got.RefreshToken), "firefox"))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h(rr, postForm("/auth/refresh", refreshForm(got.RefreshToken), "firefox"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRefresh_UserAgentMismatchBurnsSession(t *testing.T) {
	c, _ := newTestContainer(t)
	acc := mustAccount(t, c, "alice", "pw123", "staff")
	sess := mustSession(t, c, acc, "firefox")
	h := NewAuthRefreshHandler(c)

	// Token robado usado desde otro client: falla y destruye la sesión.
	rr := httptest.NewRecorder()
	h(rr, postForm("/auth/refresh", refreshForm(sess.RefreshToken.String()), "curl/8.0"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid_grant")

	// La sesión legítima también quedó quemada.
	rr = httptest.NewRecorder()
	h(rr, postForm("/auth/refresh", refreshForm(sess.RefreshToken.String()), "firefox"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRefresh_ExpiredSessionIsDeleted(t *testing.T) {
	c, _ := newTestContainer(t)
	acc := mustAccount(t, c, "alice", "pw123", "staff")

	sess, err := c.Sessions.CreateWithEviction(context.Background(), repository.CreateSessionInput{
		AccountID: acc.ID,
		UserAgent: "firefox",
		ClientIP:  "127.0.0.1",
		Scope:     "staff",
		ExpiresAt: time.Now().Add(-time.Minute),
	}, c.Policy.MaxSessions)
	require.NoError(t, err)

	h := NewAuthRefreshHandler(c)
	rr := httptest.NewRecorder()
	h(rr, postForm("/auth/refresh", refreshForm(sess.RefreshToken.String()), "firefox"))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "expired_grant")

	_, err = c.Sessions.GetByToken(context.Background(), sess.RefreshToken)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRefresh_GrantTypeMustBeLiteral(t *testing.T) {
	c, _ := newTestContainer(t)
	acc := mustAccount(t, c, "alice", "pw123", "staff")
	sess := mustSession(t, c, acc, "firefox")
	h := NewAuthRefreshHandler(c)

	form := url.Values{
		"grant_type":    {"password"},
		"refresh_token": {sess.RefreshToken.String()},
	}
	rr := httptest.NewRecorder()
	h(rr, postForm("/auth/refresh", form, "firefox"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unsupported_grant_type")
}

func TestRefresh_AccountGoneBurnsSession(t *testing.T) {
	c, st := newTestContainer(t)
	acc := mustAccount(t, c, "alice", "pw123", "staff")
	sess := mustSession(t, c, acc, "firefox")
	st.DeleteAccount(acc.ID)

	h := NewAuthRefreshHandler(c)
	rr := httptest.NewRecorder()
	h(rr, postForm("/auth/refresh", refreshForm(sess.RefreshToken.String()), "firefox"))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	_, err := c.Sessions.GetByToken(context.Background(), sess.RefreshToken)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
