// Package auth verifies the session and anti-forgery tokens issued by the main API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
)

var (
	// ErrTokenExpired is returned when any of the tokens is expired.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned when the tokens are malformed, badly signed or don't pair.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims are the claims carried by both tokens. The anti-forgery token only needs XSRFToken.
type Claims struct {
	XSRFToken string     `json:"xsrfToken"`
	User      ClaimsUser `json:"user"`
	jwt.RegisteredClaims
}

// ClaimsUser is the user embedded on the session token.
type ClaimsUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// VerifierConfig is the configuration of the Verifier.
type VerifierConfig struct {
	Secret []byte
	// Leeway tolerates clock skew on expiration checks.
	Leeway time.Duration
	Logger log.Logger
}

func (c *VerifierConfig) defaults() error {
	if len(c.Secret) == 0 {
		return fmt.Errorf("secret is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "auth.Verifier"})
	return nil
}

// Verifier verifies HS256 token pairs.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
	logger log.Logger
}

// NewVerifier returns a new token verifier.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Verifier{
		secret: cfg.Secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithLeeway(cfg.Leeway),
		),
		logger: cfg.Logger,
	}, nil
}

// Verify checks the session token and the anti-forgery token, both must be valid and carry
// the same xsrf value.
func (v *Verifier) Verify(token, xsrf string) (*model.Identity, error) {
	if token == "" || xsrf == "" {
		return nil, fmt.Errorf("missing token: %w", ErrTokenInvalid)
	}

	session, err := v.parse(token)
	if err != nil {
		return nil, fmt.Errorf("session token: %w", err)
	}
	pair, err := v.parse(xsrf)
	if err != nil {
		return nil, fmt.Errorf("xsrf token: %w", err)
	}

	if session.XSRFToken == "" || pair.XSRFToken == "" {
		v.logger.Warningf("XSRF value missing on token")
		return nil, fmt.Errorf("no xsrf value on token: %w", ErrTokenInvalid)
	}
	if session.XSRFToken != pair.XSRFToken {
		v.logger.Warningf("XSRF token mismatch")
		return nil, fmt.Errorf("xsrf token pair mismatch: %w", ErrTokenInvalid)
	}

	id := &model.Identity{
		UserID:    session.User.ID,
		Email:     session.User.Email,
		XSRFToken: xsrf,
	}
	if id.UserID == "" {
		id.UserID = session.Subject
	}
	if session.ExpiresAt != nil {
		id.ExpiresAt = session.ExpiresAt.Time
	}

	return id, nil
}

func (v *Verifier) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
	default:
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
}

// Sign signs claims with the verifier secret. Used by dev tooling and tests to mint tokens.
func (v *Verifier) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("could not sign token: %w", err)
	}
	return s, nil
}
