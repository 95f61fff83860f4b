package utils

import (
	"errors"
	"sync"
	"time" // Time for token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library
)

// Token roles.
const (
	RoleService  = "service"  // Another service in the mesh
	RoleOperator = "operator" // A human reconciling sagas
)

// JWT Claims
type Claims struct {
	Role                 string `json:"role"` // service or operator
	jwt.RegisteredClaims        // Subject holds the caller name
}

// ErrInvalidToken is returned for malformed, expired or wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// GenerateJWT creates a token for subject with role, valid for ttl
func GenerateJWT(subject, role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString([]byte(secret))                  // Sign the token with the secret
}

// ParseJWT parses and validates a JWT token string
func ParseJWT(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil // Return the secret key for validation
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// TokenSource mints short-lived service tokens and reuses one until it nears expiry.
type TokenSource struct {
	subject string
	secret  string
	ttl     time.Duration
	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewTokenSource returns a TokenSource signing as subject.
func NewTokenSource(subject, secret string, ttl time.Duration) *TokenSource {
	return &TokenSource{subject: subject, secret: secret, ttl: ttl}
}

// Token returns a valid bearer token.
func (s *TokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && time.Until(s.expires) > s.ttl/4 {
		return s.token, nil
	}
	tok, err := GenerateJWT(s.subject, RoleService, s.secret, s.ttl)
	if err != nil {
		return "", err
	}
	s.token, s.expires = tok, time.Now().Add(s.ttl)
	return tok, nil
}
