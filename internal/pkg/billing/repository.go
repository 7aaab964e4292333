package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/SubsPortal/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service and the
// payment flow.
type Repository interface {
	FindBill(id uint) (*models.Bill, error)
	ListBills(customerID uint, filter BillFilter) ([]models.Bill, error)
	ListBillsForTotals(customerID uint) ([]models.Bill, error)
	CountBills(customerID uint) (BillCounts, error)
	MarkBillPaid(id uint, receipt string, at time.Time) (bool, error)
	SetBillPaid(id uint, paid bool, at time.Time) error
	FindService(id uint) (*models.Service, error)
	CreateSubscriptionWithBill(sub *models.Subscription, bill *models.Bill) error
	ListSubscriptions(customerID uint) ([]models.Subscription, error)
	CreateCallbackEventIfNotExists(event *models.PaymentCallbackEvent) (bool, *models.PaymentCallbackEvent, error)
	MarkCallbackProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindBill(id uint) (*models.Bill, error) {
	var bill models.Bill
	err := r.db.Preload("Service").First(&bill, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id=%d", ErrBillNotFound, id)
		}
		return nil, err
	}
	return &bill, nil
}

// ListBills returns bills newest first. customerID 0 lists every customer.
func (r *gormRepository) ListBills(customerID uint, filter BillFilter) ([]models.Bill, error) {
	q := r.db.Preload("Service")
	if customerID != 0 {
		q = q.Where("customer_id = ?", customerID)
	}
	switch filter {
	case BillsPaid:
		q = q.Where("paid = ?", true)
	case BillsUnpaid:
		q = q.Where("paid = ?", false)
	}

	var bills []models.Bill
	err := q.Order("billing_date DESC").Order("id DESC").Find(&bills).Error
	return bills, err
}

func (r *gormRepository) ListBillsForTotals(customerID uint) ([]models.Bill, error) {
	q := r.db.Select("id", "customer_id", "amount", "billing_date")
	if customerID != 0 {
		q = q.Where("customer_id = ?", customerID)
	}
	var bills []models.Bill
	err := q.Order("billing_date ASC").Find(&bills).Error
	return bills, err
}

func (r *gormRepository) CountBills(customerID uint) (BillCounts, error) {
	var counts BillCounts
	base := func() *gorm.DB {
		q := r.db.Model(&models.Bill{})
		if customerID != 0 {
			q = q.Where("customer_id = ?", customerID)
		}
		return q
	}
	if err := base().Where("paid = ?", true).Count(&counts.Paid).Error; err != nil {
		return counts, err
	}
	if err := base().Where("paid = ?", false).Count(&counts.Unpaid).Error; err != nil {
		return counts, err
	}
	return counts, nil
}

// MarkBillPaid flips an unpaid bill to paid in a single conditional update.
// It returns false without error when the bill was already paid.
func (r *gormRepository) MarkBillPaid(id uint, receipt string, at time.Time) (bool, error) {
	tx := r.db.Model(&models.Bill{}).
		Where("id = ? AND paid = ?", id, false).
		Updates(map[string]interface{}{
			"paid":          true,
			"paid_at":       at,
			"mpesa_receipt": receipt,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	if tx.RowsAffected > 0 {
		return true, nil
	}

	var n int64
	if err := r.db.Model(&models.Bill{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	if n == 0 {
		return false, fmt.Errorf("%w: id=%d", ErrBillNotFound, id)
	}
	return false, nil
}

// SetBillPaid is the back-office override. Marking unpaid clears the paid
// timestamp but keeps the receipt for audit.
func (r *gormRepository) SetBillPaid(id uint, paid bool, at time.Time) error {
	var bill models.Bill
	if err := r.db.Select("id").First(&bill, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id=%d", ErrBillNotFound, id)
		}
		return err
	}

	updates := map[string]interface{}{"paid": paid, "paid_at": nil}
	if paid {
		updates["paid_at"] = at
	}
	return r.db.Model(&models.Bill{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) FindService(id uint) (*models.Service, error) {
	var svc models.Service
	if err := r.db.First(&svc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id=%d", ErrServiceNotFound, id)
		}
		return nil, err
	}
	return &svc, nil
}

// CreateSubscriptionWithBill stores both rows or neither.
func (r *gormRepository) CreateSubscriptionWithBill(sub *models.Subscription, bill *models.Bill) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(sub).Error; err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(bill).Error
	})
}

// ListSubscriptions returns purchases newest first. customerID 0 lists every
// customer and loads the owning customer too.
func (r *gormRepository) ListSubscriptions(customerID uint) ([]models.Subscription, error) {
	q := r.db.Preload("Service")
	if customerID != 0 {
		q = q.Where("customer_id = ?", customerID)
	} else {
		q = q.Preload("Customer")
	}

	var subs []models.Subscription
	err := q.Order("purchase_date DESC").Order("id DESC").Find(&subs).Error
	return subs, err
}

func (r *gormRepository) CreateCallbackEventIfNotExists(event *models.PaymentCallbackEvent) (bool, *models.PaymentCallbackEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "checkout_request_id"},
			{Name: "result_code"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.PaymentCallbackEvent
	if err := r.db.Where("provider = ? AND checkout_request_id = ? AND result_code = ?",
		event.Provider, event.CheckoutRequestID, event.ResultCode).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkCallbackProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.PaymentCallbackEvent{}).Where("id = ?", id).Updates(updates).Error
}
