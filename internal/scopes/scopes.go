// Package scopes resuelve qué scopes le corresponden a un principal y
// chequea scopes requeridos contra otorgados.
//
// La tabla rol→scopes es configuración inmutable cargada una vez al
// arranque e inyectada donde haga falta; nada de estado global mutable.
package scopes

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/dropDatabas3/hellojane/internal/domain/repository"
)

// ErrInsufficientScope: falta al menos un scope requerido (semántica AND).
var ErrInsufficientScope = errors.New("scopes: insufficient scope")

// PrincipalKind etiqueta la variante del subject.
type PrincipalKind string

const (
	KindUser PrincipalKind = "user"
	KindApp  PrincipalKind = "app"
)

// Principal es el subject de un token: una cuenta o una aplicación.
// Variante etiquetada en vez de inspección de tipos en runtime.
type Principal struct {
	Kind PrincipalKind
	// ID estable: username para cuentas, client_id para apps.
	ID string
	// Role solo aplica a cuentas.
	Role string
	// Granted solo aplica a apps: scopes otorgados explícitamente.
	Granted []string
}

func AccountPrincipal(a *repository.Account) Principal {
	return Principal{Kind: KindUser, ID: a.Username, Role: a.Role}
}

func ClientPrincipal(c *repository.Client) Principal {
	return Principal{Kind: KindApp, ID: c.ClientID, Granted: c.Scopes}
}

// Table es la configuración del autorizador.
type Table struct {
	// Roles mapea rol → scopes transitivos (incluyendo el nombre del rol).
	Roles map[string][]string
	// AccountScopes son los scopes funcionales que recibe toda cuenta
	// además de los de su rol (ej: user-read-private).
	AccountScopes []string
	// Catalog: scope → descripción humana. Define el universo de scopes
	// aceptables en un authorize request.
	Catalog map[string]string
}

// DefaultTable refleja la jerarquía staff ⊂ developer ⊂ admin: cada rol
// hereda los scopes de los inferiores y otorga además su propio nombre.
func DefaultTable() Table {
	return Table{
		Roles: map[string][]string{
			repository.RoleStaff:     {repository.RoleStaff},
			repository.RoleDeveloper: {repository.RoleStaff, repository.RoleDeveloper},
			repository.RoleAdmin:     {repository.RoleStaff, repository.RoleDeveloper, repository.RoleAdmin},
		},
		AccountScopes: []string{"user-read-private", "user-read-email"},
		Catalog: map[string]string{
			"user-read-private": "Detalles del perfil de la cuenta",
			"user-read-email":   "Dirección de email de la cuenta",
			repository.RoleStaff:     "Operaciones de staff",
			repository.RoleDeveloper: "Operaciones de developer",
			repository.RoleAdmin:     "Operaciones administrativas",
		},
	}
}

// Authorizer es read-only después de New; seguro para uso concurrente.
type Authorizer struct {
	table Table
}

func New(t Table) *Authorizer {
	return &Authorizer{table: t}
}

// ScopesFor devuelve el set de scopes otorgables al principal.
//   - cuenta: scopes transitivos del rol + scopes funcionales de cuenta
//   - app: solo lo otorgado explícitamente (sin herencia de roles)
//
// El orden es estable para que el claim "scopes" sea determinístico.
func (a *Authorizer) ScopesFor(p Principal) []string {
	switch p.Kind {
	case KindUser:
		out := make([]string, 0, 8)
		out = append(out, a.table.Roles[p.Role]...)
		out = append(out, a.table.AccountScopes...)
		return dedupe(out)
	case KindApp:
		return dedupe(append([]string(nil), p.Granted...))
	default:
		return nil
	}
}

func (a *Authorizer) Check(required, granted []string) error {
	return Check(required, granted)
}

// Check exige que TODOS los required estén en granted.
// La ausencia de uno solo hace fallar el chequeo completo.
// No necesita la tabla, así que vive también como función suelta.
func Check(required, granted []string) error {
	set := make(map[string]struct{}, len(granted))
	for _, g := range granted {
		set[g] = struct{}{}
	}
	for _, req := range required {
		if _, ok := set[req]; !ok {
			return fmt.Errorf("%w: %s", ErrInsufficientScope, req)
		}
	}
	return nil
}

// InCatalog reporta si el scope es parte del catálogo conocido.
func (a *Authorizer) InCatalog(scope string) bool {
	_, ok := a.table.Catalog[scope]
	return ok
}

// Scope name rules (mismas que siempre):
// - Lowercase only, empieza y termina en [a-z0-9].
// - Interior puede incluir [a-z0-9:_.-]. Largo 1..64.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidName reporta si el nombre de scope cumple las reglas léxicas.
func ValidName(name string) bool {
	return scopeNameRe.MatchString(name)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
