package scopes_test

import (
	"errors"
	"testing"

	"github.com/dropDatabas3/hellojane/internal/domain/repository"
	"github.com/dropDatabas3/hellojane/internal/scopes"
	"github.com/stretchr/testify/assert"
)

func newDefault() *scopes.Authorizer {
	return scopes.New(scopes.DefaultTable())
}

func TestScopesFor_RoleInheritance(t *testing.T) {
	a := newDefault()

	staff := a.ScopesFor(scopes.Principal{Kind: scopes.KindUser, ID: "s", Role: repository.RoleStaff})
	dev := a.ScopesFor(scopes.Principal{Kind: scopes.KindUser, ID: "d", Role: repository.RoleDeveloper})
	admin := a.ScopesFor(scopes.Principal{Kind: scopes.KindUser, ID: "a", Role: repository.RoleAdmin})

	assert.Contains(t, staff, "staff")
	assert.NotContains(t, staff, "developer")

	assert.Contains(t, dev, "staff")
	assert.Contains(t, dev, "developer")
	assert.NotContains(t, dev, "admin")

	assert.Contains(t, admin, "staff")
	assert.Contains(t, admin, "developer")
	assert.Contains(t, admin, "admin")

	// Toda cuenta recibe los scopes funcionales.
	for _, set := range [][]string{staff, dev, admin} {
		assert.Contains(t, set, "user-read-private")
		assert.Contains(t, set, "user-read-email")
	}
}

func TestScopesFor_PlainUserHasNoRoleScopes(t *testing.T) {
	a := newDefault()
	got := a.ScopesFor(scopes.Principal{Kind: scopes.KindUser, ID: "u", Role: repository.RoleUser})
	assert.ElementsMatch(t, []string{"user-read-private", "user-read-email"}, got)
}

func TestScopesFor_AppGetsOnlyExplicitGrants(t *testing.T) {
	a := newDefault()

	none := a.ScopesFor(scopes.Principal{Kind: scopes.KindApp, ID: "cli"})
	assert.Empty(t, none)

	granted := a.ScopesFor(scopes.Principal{Kind: scopes.KindApp, ID: "cli", Granted: []string{"user-read-private"}})
	assert.Equal(t, []string{"user-read-private"}, granted)
}

func TestCheck_AndSemantics(t *testing.T) {
	a := newDefault()
	granted := []string{"staff", "user-read-private"}

	assert.NoError(t, a.Check(nil, granted))
	assert.NoError(t, a.Check([]string{"staff"}, granted))
	assert.NoError(t, a.Check([]string{"staff", "user-read-private"}, granted))

	err := a.Check([]string{"staff", "admin"}, granted)
	assert.True(t, errors.Is(err, scopes.ErrInsufficientScope))
}

func TestValidName(t *testing.T) {
	for _, ok := range []string{"a", "profile", "user-read-private", "email:read", "a_b-c.d:x2"} {
		assert.True(t, scopes.ValidName(ok), ok)
	}
	for _, bad := range []string{"", "UPPER", ":lead", "trail:", "bad space", "semicolon;x"} {
		assert.False(t, scopes.ValidName(bad), bad)
	}
}
