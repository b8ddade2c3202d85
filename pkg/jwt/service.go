package jwt

import (
	"time"
)

// Service is a wrapper for JWT operations
type Service struct {
	secretKey string
	expiry    time.Duration
}

// NewService creates a new JWT service
func NewService(secretKey string, expiry time.Duration) *Service {
	if secretKey == "" {
		secretKey = getSecretKey()
	}

	if expiry == 0 {
		expiry = 24 * time.Hour // Default to 24 hours
	}

	return &Service{
		secretKey: secretKey,
		expiry:    expiry,
	}
}

// GenerateToken issues a console token for the given subject.
func (s *Service) GenerateToken(subject string, roles []Role) (string, error) {
	return generateToken(subject, roles, s.secretKey, s.expiry)
}

// ValidateToken validates a console token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*JWTClaims, error) {
	return validateToken(tokenString, s.secretKey)
}
