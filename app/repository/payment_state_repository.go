package repository

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/SubsPortal/internal/pkg/payment"
)

// paymentStateRepository operates on Redis, not GORM
type paymentStateRepository struct {
	rdb redis.Cmdable
}

func NewPaymentStateRepository(rdb redis.Cmdable) PaymentStateRepository {
	return &paymentStateRepository{rdb: rdb}
}

// ListAttemptKeys returns the stored attempt keys sorted by name
func (r *paymentStateRepository) ListAttemptKeys() ([]string, error) {
	ctx := context.Background()
	var keys []string
	iter := r.rdb.Scan(ctx, 0, payment.AttemptKeyPattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *paymentStateRepository) GetValue(key string) (string, error) {
	return r.rdb.Get(context.Background(), key).Result()
}

// GetTTL retrieves the time-to-live for a specific key
func (r *paymentStateRepository) GetTTL(key string) (time.Duration, error) {
	ttl, err := r.rdb.TTL(context.Background(), key).Result()
	if err != nil {
		return -1, err
	}
	return ttl, nil
}

func (r *paymentStateRepository) DeleteKey(key string) (int64, error) {
	return r.rdb.Del(context.Background(), key).Result()
}
