// Package jwtauth authenticates bearer tokens signed with HMAC-SHA256. Its
// Provider is an oapi.AuthProvider[*Claims].
package jwtauth

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bjaus/oapi"
)

// Claims are the claims of an issued token.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims grant role.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// Provider issues and verifies tokens. It is safe for concurrent use.
type Provider struct {
	secret []byte
	issuer string
	ttl    time.Duration
	roles  []string
	now    func() time.Time
}

// Option configures a Provider.
type Option func(*Provider)

// WithIssuer sets the iss claim of issued tokens and requires it on verified ones.
func WithIssuer(iss string) Option {
	return func(p *Provider) {
		p.issuer = iss
	}
}

// WithTTL sets the lifetime of issued tokens. Defaults to one hour.
func WithTTL(d time.Duration) Option {
	return func(p *Provider) {
		p.ttl = d
	}
}

// WithClock sets the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// New returns a provider signing with secret.
func New(secret []byte, opts ...Option) *Provider {
	p := &Provider{
		secret: secret,
		ttl:    time.Hour,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RequireRoles returns a provider that also requires every role. A valid
// token without them is forbidden rather than unauthorized.
func (p *Provider) RequireRoles(roles ...string) *Provider {
	np := *p
	np.roles = append(slices.Clone(p.roles), roles...)
	return &np
}

// Security describes the bearer scheme.
func (p *Provider) Security() oapi.Security {
	return oapi.Security{
		Name: "bearerAuth",
		Scheme: oapi.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
}

// Authenticate verifies the bearer token of r.
func (p *Provider) Authenticate(r *http.Request) (*Claims, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, oapi.ErrNoPrincipal
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	}
	if p.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(p.issuer))
	}

	claims := new(Claims)
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	}, parserOpts...)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "verify token"), oapi.ErrInvalidCredentials)
	}

	for _, role := range p.roles {
		if !claims.HasRole(role) {
			return nil, errors.Mark(errors.Newf("role %q required", role), oapi.ErrForbidden)
		}
	}
	return claims, nil
}

// Issue signs a token for subject with the given roles.
func (p *Provider) Issue(subject string, roles ...string) (string, error) {
	now := p.now().UTC()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
