package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultAttemptTTL = 24 * time.Hour

	attemptKeyPrefix  = "payment:attempt:"
	checkoutKeyPrefix = "payment:checkout:"
)

// AttemptStore keeps the latest attempt per bill and a checkout id index.
type AttemptStore interface {
	Save(ctx context.Context, a *Attempt) error
	// Get returns nil without error when no attempt is stored.
	Get(ctx context.Context, billID uint) (*Attempt, error)
	// BillIDForCheckout returns 0 without error for unknown checkout ids.
	BillIDForCheckout(ctx context.Context, checkoutRequestID string) (uint, error)
}

// RedisAttemptStore stores attempts as JSON with a TTL.
type RedisAttemptStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisAttemptStore(client redis.Cmdable, ttl time.Duration) *RedisAttemptStore {
	if ttl <= 0 {
		ttl = DefaultAttemptTTL
	}
	return &RedisAttemptStore{client: client, ttl: ttl}
}

// AttemptKeyPattern matches every stored attempt key.
const AttemptKeyPattern = attemptKeyPrefix + "*"

// AttemptKey is the Redis key holding the attempt for billID.
func AttemptKey(billID uint) string {
	return attemptKeyPrefix + strconv.FormatUint(uint64(billID), 10)
}

func checkoutKey(checkoutRequestID string) string {
	return checkoutKeyPrefix + checkoutRequestID
}

// Save replaces the stored attempt for a.BillID.
func (s *RedisAttemptStore) Save(ctx context.Context, a *Attempt) error {
	if a == nil || a.BillID == 0 {
		return errors.New("attempt without bill id")
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, AttemptKey(a.BillID), payload, s.ttl)
		if a.CheckoutRequestID != "" {
			pipe.Set(ctx, checkoutKey(a.CheckoutRequestID), strconv.FormatUint(uint64(a.BillID), 10), s.ttl)
		}
		return nil
	})
	return err
}

func (s *RedisAttemptStore) Get(ctx context.Context, billID uint) (*Attempt, error) {
	raw, err := s.client.Get(ctx, AttemptKey(billID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var a Attempt
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode attempt %d: %w", billID, err)
	}
	return &a, nil
}

func (s *RedisAttemptStore) BillIDForCheckout(ctx context.Context, checkoutRequestID string) (uint, error) {
	if checkoutRequestID == "" {
		return 0, nil
	}
	raw, err := s.client.Get(ctx, checkoutKey(checkoutRequestID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode checkout index %q: %w", checkoutRequestID, err)
	}
	return uint(id), nil
}
