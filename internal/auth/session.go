package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/plugcu/backend/internal/gate"
	"github.com/plugcu/backend/internal/models"
)

const revokedKeyPrefix = "session:revoked:"

// SessionService is the identity provider consulted by the gate. Tokens are
// stateless JWTs; signing out records the token id in Redis until it expires.
type SessionService struct {
	jwt    *JWTService
	redis  *redis.Client
	logger *zap.Logger
}

// NewSessionService creates a session service.
func NewSessionService(jwt *JWTService, rdb *redis.Client, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{jwt: jwt, redis: rdb, logger: logger}
}

// Issue creates a session token for user.
func (s *SessionService) Issue(user *models.User) (string, error) {
	token, _, err := s.jwt.Generate(user)
	return token, err
}

// GetSession returns the session for token. Invalid, expired and revoked tokens
// yield (nil, nil); a revocation store failure is returned as an error.
func (s *SessionService) GetSession(ctx context.Context, token string) (*gate.Session, error) {
	claims, err := s.jwt.Validate(token)
	if err != nil {
		return nil, nil
	}
	n, err := s.redis.Exists(ctx, revokedKeyPrefix+claims.ID).Result()
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if n > 0 {
		return nil, nil
	}
	return &gate.Session{
		IdentityID: claims.UserID,
		Email:      claims.Email,
		Role:       models.ParseRole(claims.Role),
	}, nil
}

// SignOut revokes token for the rest of its lifetime. Invalid tokens are ignored.
func (s *SessionService) SignOut(ctx context.Context, token string) error {
	claims, err := s.jwt.Validate(token)
	if err != nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, revokedKeyPrefix+claims.ID, claims.UserID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.logger.Debug("session revoked", zap.String("user_id", claims.UserID.String()))
	return nil
}
