package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// RegistrationGuard claims a (source type, connection id) pair for a short
// window so a repeated OAuth callback does not register the same connection twice.
type RegistrationGuard struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewRegistrationGuard(client *redisv9.Client, ttl time.Duration) *RegistrationGuard {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RegistrationGuard{
		client: client,
		ttl:    ttl,
	}
}

// Claim returns false when the pair is already claimed.
func (g *RegistrationGuard) Claim(ctx context.Context, sourceType, connectionID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.key(sourceType, connectionID), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim registration failed: %w", err)
	}
	return ok, nil
}

func (g *RegistrationGuard) Release(ctx context.Context, sourceType, connectionID string) error {
	if err := g.client.Del(ctx, g.key(sourceType, connectionID)).Err(); err != nil {
		return fmt.Errorf("redis release registration failed: %w", err)
	}
	return nil
}

func (g *RegistrationGuard) key(sourceType, connectionID string) string {
	return fmt.Sprintf("sources:register:%s:%s", strings.ToLower(sourceType), connectionID)
}
