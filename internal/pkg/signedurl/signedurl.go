// Package signedurl issues the HS256 tokens behind public form links and the
// render tickets used to enforce a minimum fill time.
package signedurl

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const (
	audienceForm   = "form"
	audienceTicket = "render"
)

var (
	ErrInvalidToken = errors.New("invalid or expired link")
	ErrTooFast      = errors.New("form submitted too quickly")
)

// FormClaims identifies a published form version.
type FormClaims struct {
	FormID  string `json:"fid"`
	Version int    `json:"v"`
	jwtlib.RegisteredClaims
}

// TicketClaims records when a public form was rendered.
type TicketClaims struct {
	FormID string `json:"fid"`
	jwtlib.RegisteredClaims
}

// Signer signs and verifies tokens with one shared secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func New(secret string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("signing secret is empty")
	}
	return &Signer{secret: []byte(secret), now: time.Now}, nil
}

// SignForm returns a token for the form version. A zero ttl never expires.
func (s *Signer) SignForm(formID string, version int, ttl time.Duration) (string, error) {
	now := s.now()
	claims := FormClaims{
		FormID:  formID,
		Version: version,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Audience: jwtlib.ClaimStrings{audienceForm},
			IssuedAt: jwtlib.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwtlib.NewNumericDate(now.Add(ttl))
	}
	return s.sign(claims)
}

// ParseForm validates a form token.
func (s *Signer) ParseForm(token string) (*FormClaims, error) {
	claims := &FormClaims{}
	if err := s.parse(token, claims, audienceForm); err != nil {
		return nil, err
	}
	if claims.FormID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueTicket stamps the render time of a public form.
func (s *Signer) IssueTicket(formID string) (string, error) {
	now := s.now()
	return s.sign(TicketClaims{
		FormID: formID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Audience: jwtlib.ClaimStrings{audienceTicket},
			IssuedAt: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(24 * time.Hour)),
		},
	})
}

// CheckTicket verifies a ticket belongs to formID and at least min elapsed
// since it was issued.
func (s *Signer) CheckTicket(ticket, formID string, min time.Duration) error {
	claims := &TicketClaims{}
	if err := s.parse(ticket, claims, audienceTicket); err != nil {
		return err
	}
	if claims.FormID != formID || claims.IssuedAt == nil {
		return ErrInvalidToken
	}
	if s.now().Sub(claims.IssuedAt.Time) < min {
		return ErrTooFast
	}
	return nil
}

func (s *Signer) sign(claims jwtlib.Claims) (string, error) {
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Signer) parse(token string, claims jwtlib.Claims, audience string) error {
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwtlib.WithAudience(audience),
		jwtlib.WithTimeFunc(s.now),
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
	)
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
