package payment

import (
	"context"
	"sync"
	"testing"

	"github.com/ManuelReschke/SubsPortal/app/models"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/billing"
	"github.com/ManuelReschke/SubsPortal/internal/pkg/mpesa"
	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Customer{},
		&models.Service{},
		&models.Subscription{},
		&models.Bill{},
		&models.PaymentCallbackEvent{},
	))
	return db
}

// fakeGateway records every push and answers with a fixed result.
type fakeGateway struct {
	mu     sync.Mutex
	calls  []mpesa.PushInput
	result mpesa.Result
	err    error
}

func (g *fakeGateway) StkPush(ctx context.Context, in mpesa.PushInput) (mpesa.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, in)
	return g.result, g.err
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func accepted(checkoutID, msg string) mpesa.Result {
	return mpesa.Result{Kind: mpesa.ResultAccepted, Accepted: &mpesa.Acceptance{
		Code:              "0",
		MerchantRequestID: "m-" + checkoutID,
		CheckoutRequestID: checkoutID,
		CustomerMessage:   msg,
	}}
}

type fakeBills map[uint]*models.Bill

func (f fakeBills) FindBill(id uint) (*models.Bill, error) {
	b, ok := f[id]
	if !ok {
		return nil, billing.ErrBillNotFound
	}
	cp := *b
	return &cp, nil
}
