package statistics

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ManuelReschke/SubsPortal/app/models"
)

const (
	CacheKeySummary = "statistics:summary"
	CacheExpiration = time.Minute
)

// Summary is the back office overview.
type Summary struct {
	Customers      int64           `json:"customers"`
	Services       int64           `json:"services"`
	ActiveServices int64           `json:"active_services"`
	PaidBills      int64           `json:"paid_bills"`
	UnpaidBills    int64           `json:"unpaid_bills"`
	Collected      decimal.Decimal `json:"collected"`
	Outstanding    decimal.Decimal `json:"outstanding"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// Statistics computes the summary from the database and caches it in Redis.
type Statistics struct {
	db  *gorm.DB
	rdb redis.Cmdable
	ttl time.Duration
}

func New(db *gorm.DB, rdb redis.Cmdable) *Statistics {
	return &Statistics{db: db, rdb: rdb, ttl: CacheExpiration}
}

// GetSummary returns the cached summary or computes a fresh one. Cache
// failures are logged and never fail the call.
func (s *Statistics) GetSummary(ctx context.Context) (*Summary, error) {
	if s.rdb != nil {
		raw, err := s.rdb.Get(ctx, CacheKeySummary).Bytes()
		if err == nil {
			var cached Summary
			if jerr := json.Unmarshal(raw, &cached); jerr == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			fiberlog.Warnf("[Admin] statistics cache read failed: %v", err)
		}
	}

	sum, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if b, jerr := json.Marshal(sum); jerr == nil {
			if err := s.rdb.Set(ctx, CacheKeySummary, b, s.ttl).Err(); err != nil {
				fiberlog.Warnf("[Admin] statistics cache write failed: %v", err)
			}
		}
	}
	return sum, nil
}

// Invalidate drops the cached summary after a manual change.
func (s *Statistics) Invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, CacheKeySummary).Err(); err != nil {
		fiberlog.Warnf("[Admin] statistics cache invalidate failed: %v", err)
	}
}

func (s *Statistics) compute(ctx context.Context) (*Summary, error) {
	db := s.db.WithContext(ctx)
	sum := &Summary{GeneratedAt: time.Now().UTC()}

	if err := db.Model(&models.Customer{}).Count(&sum.Customers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Service{}).Count(&sum.Services).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Service{}).Where("active = ?", true).Count(&sum.ActiveServices).Error; err != nil {
		return nil, err
	}

	var paid, unpaid []decimal.Decimal
	if err := db.Model(&models.Bill{}).Where("paid = ?", true).Pluck("amount", &paid).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Bill{}).Where("paid = ?", false).Pluck("amount", &unpaid).Error; err != nil {
		return nil, err
	}
	sum.PaidBills = int64(len(paid))
	sum.UnpaidBills = int64(len(unpaid))
	sum.Collected = decimal.Sum(decimal.Zero, paid...)
	sum.Outstanding = decimal.Sum(decimal.Zero, unpaid...)

	return sum, nil
}
