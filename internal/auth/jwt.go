// Package auth issues and validates operator tokens guarding the admin API.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token policy.
//
// Operator tokens are short-lived HS256 JWTs minted with `velibctl token`
// and sent as a Bearer token to /v1/admin endpoints. They carry the
// operator name as subject and the "operator" role. There is no refresh
// flow; an expired token is simply minted again.

// DefaultTokenExpiry is how long operator tokens are valid.
const DefaultTokenExpiry = 1 * time.Hour

// RoleOperator is the only role accepted by the admin API.
const RoleOperator = "operator"

// Predefined JWT errors.
var (
	ErrInvalidToken  = errors.New("invalid access token")
	ErrTokenExpired  = errors.New("access token has expired")
	ErrForbiddenRole = errors.New("token role is not allowed")
	ErrMissingKey    = errors.New("signing key is not configured")
)

// Claims represents the claims in operator tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Role is the operator role.
	Role string `json:"role"`
}

// JWTConfig holds configuration for the JWT service.
type JWTConfig struct {
	// SigningKey is the secret key used to sign JWTs.
	SigningKey string `koanf:"signing_key"`

	// Issuer is the issuer claim for tokens (e.g., "https://api.velibadvisor.fr").
	Issuer string `koanf:"issuer"`

	// Audience is the audience claim for tokens (e.g., "velibadvisor-admin").
	Audience string `koanf:"audience"`

	// Expiry is the token lifetime (default: 1 hour).
	Expiry time.Duration `koanf:"expiry"`
}

// JWTService handles JWT creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	expiry     time.Duration
	now        func() time.Time
}

// NewJWTService creates a new JWT service.
func NewJWTService(cfg JWTConfig) *JWTService {
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}

	return &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		expiry:     expiry,
		now:        time.Now,
	}
}

// Issue creates a new operator token for subject.
func (s *JWTService) Issue(subject string) (string, time.Time, error) {
	if len(s.signingKey) == 0 {
		return "", time.Time{}, ErrMissingKey
	}

	now := s.now()
	expiresAt := now.Add(s.expiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        generateTokenID(),
		},
		Role: RoleOperator,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// Validate validates an operator token and returns its claims.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	if len(s.signingKey) == 0 {
		return nil, ErrMissingKey
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Role != RoleOperator {
		return nil, ErrForbiddenRole
	}

	return claims, nil
}

// generateTokenID generates a unique token ID.
func generateTokenID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
