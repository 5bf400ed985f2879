// Package referral answers the read-only queries: how many participants
// someone invited, and which of their codes are still unredeemed.
package referral

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Registry is the slice of the participant registry the queries need.
type Registry interface {
	CountInvitees(ctx context.Context, id string) (int, error)
	UnconsumedCodes(ctx context.Context, id string) ([]string, error)
}

// Service serves referral queries, caching invitee counts in Redis. The
// cache is best-effort: any Redis failure falls back to the database.
type Service struct {
	registry Registry
	cache    *redis.Client // nil disables caching
	ttl      time.Duration
	logger   *zap.Logger
}

// NewService creates a referral query service. cache may be nil.
func NewService(registry Registry, cache *redis.Client, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{registry: registry, cache: cache, ttl: ttl, logger: logger}
}

func scoreKey(id string) string {
	return "score:" + id
}

// Score returns the number of participants invited by id; 0 for unknown
// participants.
func (s *Service) Score(ctx context.Context, id string) (int, error) {
	if s.cache != nil {
		if v, err := s.cache.Get(ctx, scoreKey(id)).Result(); err == nil {
			if n, convErr := strconv.Atoi(v); convErr == nil {
				return n, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("score cache read failed", zap.Error(err))
		}
	}

	n, err := s.registry.CountInvitees(ctx, id)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, scoreKey(id), strconv.Itoa(n), s.ttl).Err(); err != nil {
			s.logger.Warn("score cache write failed", zap.Error(err))
		}
	}
	return n, nil
}

// InvalidateScore drops the cached count after a redemption credits id.
func (s *Service) InvalidateScore(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, scoreKey(id)).Err(); err != nil {
		s.logger.Warn("score cache invalidate failed", zap.Error(err))
	}
}

// ListCodes returns id's unredeemed codes in creation order; empty for
// unknown participants.
func (s *Service) ListCodes(ctx context.Context, id string) ([]string, error) {
	return s.registry.UnconsumedCodes(ctx, id)
}
