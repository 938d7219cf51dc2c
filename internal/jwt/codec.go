// Package jwt implementa el codec de access tokens.
//
// Los tokens son stateless: se firman con un secreto simétrico (HS256) y
// nunca se persisten server-side. El subject NO se valida contra un
// principal vivo acá; eso es responsabilidad del caller.
package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// ReferenceKind distingue el tipo de subject del token.
type ReferenceKind string

const (
	RefUser ReferenceKind = "user" // subject = username de una cuenta
	RefApp  ReferenceKind = "app"  // subject = client_id de una aplicación
)

var (
	// ErrExpiredToken: firma válida pero exp quedó en el pasado.
	// Se distingue del resto para que el caller responda expired_token.
	ErrExpiredToken = errors.New("jwt: token expired")
	// ErrMalformedToken: cualquier otra falla estructural o de firma.
	ErrMalformedToken = errors.New("jwt: malformed token")
)

// Claims son los claims propios del access token ya decodificados.
// Timestamps en segundos Unix UTC, sin sub-segundos ni compensación de skew.
type Claims struct {
	Subject   string
	Scopes    []string
	Kind      ReferenceKind
	IssuedAt  int64
	ExpiresAt int64
}

type wireClaims struct {
	Scopes []string `json:"scopes"`
	Ref    string   `json:"ref"`
	jwtv5.RegisteredClaims
}

// Codec firma y verifica access tokens con un secreto compartido.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret, now: time.Now}
}

// NewCodecAt permite inyectar el reloj (tests).
func NewCodecAt(secret []byte, now func() time.Time) *Codec {
	return &Codec{secret: secret, now: now}
}

// Mint emite un token firmado. exp = iat + ttl, siempre estrictamente mayor.
func (c *Codec) Mint(subject string, scopes []string, kind ReferenceKind, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, errors.New("jwt: ttl must be positive")
	}
	now := c.now().UTC().Truncate(time.Second)
	exp := now.Add(ttl)

	claims := wireClaims{
		Scopes: scopes,
		Ref:    string(kind),
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Decode verifica firma y expiración.
// Retorna ErrExpiredToken cuando now > exp; ErrMalformedToken para todo
// lo demás (firma rota, algoritmo inesperado, estructura inválida).
func (c *Codec) Decode(raw string) (*Claims, error) {
	var wc wireClaims
	_, err := jwtv5.ParseWithClaims(raw, &wc, func(t *jwtv5.Token) (any, error) {
		return c.secret, nil
	},
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrMalformedToken
	}
	if wc.Subject == "" || (wc.Ref != string(RefUser) && wc.Ref != string(RefApp)) {
		return nil, ErrMalformedToken
	}

	out := &Claims{
		Subject: wc.Subject,
		Scopes:  wc.Scopes,
		Kind:    ReferenceKind(wc.Ref),
	}
	if wc.IssuedAt != nil {
		out.IssuedAt = wc.IssuedAt.Unix()
	}
	if wc.ExpiresAt != nil {
		out.ExpiresAt = wc.ExpiresAt.Unix()
	}
	return out, nil
}
