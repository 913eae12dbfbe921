// Package auth issues and validates the session tokens used by the HTTP API.
// A session is anonymous: the token only carries the profile ID under which
// preferences are stored.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "whats-overhead"

var (
	// ErrInvalidToken is returned when token validation fails
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrNoSecret is returned when no signing secret is configured
	ErrNoSecret = errors.New("session secret is not configured")
)

// Claims represents the JWT claims for a session
type Claims struct {
	ProfileID string `json:"profile_id"`
	jwt.RegisteredClaims
}

// Config holds authentication configuration
type Config struct {
	Secret        string        // Secret key for signing JWTs
	TokenDuration time.Duration // How long tokens are valid
}

// Service provides session token operations
type Service struct {
	config Config
	now    func() time.Time
}

// NewService creates a new authentication service
func NewService(cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}

	// Default token duration is 24 hours
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = 24 * time.Hour
	}

	return &Service{config: cfg, now: time.Now}, nil
}

// NewProfileID returns a fresh random profile identifier.
func NewProfileID() string {
	return uuid.NewString()
}

// IssueToken signs a session token for profileID.
// An empty profileID gets a new one.
func (s *Service) IssueToken(profileID string) (string, *Claims, error) {
	if profileID == "" {
		profileID = NewProfileID()
	}

	now := s.now()
	claims := &Claims{
		ProfileID: profileID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   profileID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, claims, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ProfileID == "" {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.ProfileID); err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
