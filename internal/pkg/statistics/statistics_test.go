package statistics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/SubsPortal/app/models"
)

func setup(t *testing.T) (*gorm.DB, *miniredis.Miniredis, *Statistics) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Customer{}, &models.Service{}, &models.Bill{}))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return db, mr, New(db, rdb)
}

func seed(t *testing.T, db *gorm.DB) {
	t.Helper()
	c := &models.Customer{Name: "Wanjiru", Email: "w@example.com", Role: models.ROLE_CUSTOMER}
	require.NoError(t, db.Create(c).Error)
	s := &models.Service{Name: "Fibre", Charge: decimal.RequireFromString("100"), DurationValue: 1, DurationUnit: models.DURATION_DAY, Active: true}
	require.NoError(t, db.Create(s).Error)
	for _, b := range []models.Bill{
		{CustomerID: c.ID, ServiceID: s.ID, Amount: decimal.RequireFromString("100.50"), BillingDate: time.Now(), Paid: true},
		{CustomerID: c.ID, ServiceID: s.ID, Amount: decimal.RequireFromString("200"), BillingDate: time.Now()},
		{CustomerID: c.ID, ServiceID: s.ID, Amount: decimal.RequireFromString("50"), BillingDate: time.Now()},
	} {
		b := b
		require.NoError(t, db.Omit("Service", "Customer").Create(&b).Error)
	}
}

func TestGetSummary(t *testing.T) {
	db, mr, stats := setup(t)
	seed(t, db)

	sum, err := stats.GetSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Customers)
	assert.Equal(t, int64(1), sum.ActiveServices)
	assert.Equal(t, int64(1), sum.PaidBills)
	assert.Equal(t, int64(2), sum.UnpaidBills)
	assert.Equal(t, "100.5", sum.Collected.String())
	assert.Equal(t, "250", sum.Outstanding.String())
	assert.True(t, mr.Exists(CacheKeySummary))
}

func TestGetSummary_ServedFromCacheUntilInvalidated(t *testing.T) {
	db, mr, stats := setup(t)
	seed(t, db)
	ctx := context.Background()

	_, err := stats.GetSummary(ctx)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Bill{}).Where("paid = ?", false).Update("paid", true).Error)

	cached, err := stats.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cached.UnpaidBills)

	stats.Invalidate(ctx)
	assert.False(t, mr.Exists(CacheKeySummary))

	fresh, err := stats.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), fresh.UnpaidBills)
	assert.Equal(t, int64(3), fresh.PaidBills)
}
