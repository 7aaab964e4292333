package billing

import (
	"testing"

	"github.com/ManuelReschke/SubsPortal/app/models"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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

func seedCustomer(t *testing.T, db *gorm.DB, email string) *models.Customer {
	t.Helper()
	c := &models.Customer{Name: "Test Customer", Email: email, Phone: "0712345678", Role: models.ROLE_CUSTOMER}
	require.NoError(t, db.Create(c).Error)
	return c
}

func seedService(t *testing.T, db *gorm.DB, name, charge string, active bool) *models.Service {
	t.Helper()
	svc := &models.Service{
		Name:          name,
		Charge:        decimal.RequireFromString(charge),
		DurationValue: 1,
		DurationUnit:  models.DURATION_MONTH,
		Active:        true,
	}
	require.NoError(t, db.Create(svc).Error)
	if !active {
		require.NoError(t, db.Model(svc).Update("active", false).Error)
		svc.Active = false
	}
	return svc
}
