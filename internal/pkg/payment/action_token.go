package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultActionTokenTTL = 30 * time.Minute

	actionKeyPrefix = "payment:action:"
)

// ActionTokens issues one-shot tokens that mark a request as an explicit
// user submission. A page render issues a token; only a submission carrying
// an unused token may reach the gateway.
type ActionTokens interface {
	Issue(ctx context.Context, scope string) (string, error)
	// Consume reports whether token was issued for scope and not used yet.
	Consume(ctx context.Context, scope, token string) (bool, error)
}

// ActionScope binds a token to one customer and one bill.
func ActionScope(customerID, billID uint) string {
	return fmt.Sprintf("pay:%d:%d", customerID, billID)
}

type RedisActionTokens struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisActionTokens(client redis.Cmdable, ttl time.Duration) *RedisActionTokens {
	if ttl <= 0 {
		ttl = DefaultActionTokenTTL
	}
	return &RedisActionTokens{client: client, ttl: ttl}
}

func actionKey(scope, token string) string {
	return actionKeyPrefix + scope + ":" + token
}

func (t *RedisActionTokens) Issue(ctx context.Context, scope string) (string, error) {
	token := uuid.NewString()
	if err := t.client.Set(ctx, actionKey(scope, token), "1", t.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Consume deletes the token; only the caller whose DEL removed the key wins.
func (t *RedisActionTokens) Consume(ctx context.Context, scope, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}
	if _, err := uuid.Parse(token); err != nil {
		return false, nil
	}
	n, err := t.client.Del(ctx, actionKey(scope, token)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
