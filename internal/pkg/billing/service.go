package billing

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/ManuelReschke/SubsPortal/app/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service provides subscription purchase, bill queries and reports.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Repository exposes the underlying store for the payment flow.
func (s *Service) Repository() Repository {
	return s.repo
}

// Subscribe buys a service for a customer: one subscription and one unpaid
// bill for the service charge, stored atomically.
func (s *Service) Subscribe(ctx context.Context, customerID, serviceID uint) (*models.Subscription, *models.Bill, error) {
	_ = ctx
	if customerID == 0 {
		return nil, nil, ErrCustomerRequired
	}
	svc, err := s.repo.FindService(serviceID)
	if err != nil {
		return nil, nil, err
	}
	if !svc.Active {
		return nil, nil, ErrServiceInactive
	}

	now := s.now()
	sub := &models.Subscription{
		CustomerID:   customerID,
		ServiceID:    svc.ID,
		PurchaseDate: now,
		ExpiryDate:   ExpiryDate(now, svc.DurationValue, svc.DurationUnit),
	}
	bill := &models.Bill{
		CustomerID:  customerID,
		ServiceID:   svc.ID,
		Amount:      svc.Charge,
		BillingDate: now,
	}
	if err := s.repo.CreateSubscriptionWithBill(sub, bill); err != nil {
		return nil, nil, err
	}
	sub.Service = *svc
	bill.Service = *svc
	return sub, bill, nil
}

// Subscriptions lists a customer's purchases, newest first.
func (s *Service) Subscriptions(ctx context.Context, customerID uint) ([]models.Subscription, error) {
	_ = ctx
	if customerID == 0 {
		return nil, ErrCustomerRequired
	}
	return s.repo.ListSubscriptions(customerID)
}

// AllSubscriptions lists every customer's purchases for the back office.
func (s *Service) AllSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	_ = ctx
	return s.repo.ListSubscriptions(0)
}

// CustomerBills lists one customer's bills.
func (s *Service) CustomerBills(ctx context.Context, customerID uint, filter BillFilter) ([]models.Bill, error) {
	_ = ctx
	if customerID == 0 {
		return nil, ErrCustomerRequired
	}
	return s.repo.ListBills(customerID, filter)
}

// AllBills lists bills of every customer for the back office.
func (s *Service) AllBills(ctx context.Context, filter BillFilter) ([]models.Bill, error) {
	_ = ctx
	return s.repo.ListBills(0, filter)
}

// CustomerBill returns a bill only if it belongs to customerID.
func (s *Service) CustomerBill(ctx context.Context, customerID, billID uint) (*models.Bill, error) {
	_ = ctx
	bill, err := s.repo.FindBill(billID)
	if err != nil {
		return nil, err
	}
	if bill.CustomerID != customerID {
		return nil, ErrBillNotFound
	}
	return bill, nil
}

// SetBillPaid is the admin override for a bill's paid flag.
func (s *Service) SetBillPaid(ctx context.Context, billID uint, paid bool) error {
	_ = ctx
	if billID == 0 {
		return ErrBillNotFound
	}
	return s.repo.SetBillPaid(billID, paid, s.now())
}

// Counts returns paid/unpaid counts. customerID 0 counts every bill.
func (s *Service) Counts(ctx context.Context, customerID uint) (BillCounts, error) {
	_ = ctx
	return s.repo.CountBills(customerID)
}

// MonthlyTotals sums bill amounts per billing month in ascending order.
// customerID 0 covers every customer.
func (s *Service) MonthlyTotals(ctx context.Context, customerID uint) ([]MonthlyTotal, error) {
	_ = ctx
	bills, err := s.repo.ListBillsForTotals(customerID)
	if err != nil {
		return nil, err
	}
	return groupByMonth(bills), nil
}

func groupByMonth(bills []models.Bill) []MonthlyTotal {
	byMonth := make(map[string]*MonthlyTotal)
	for _, b := range bills {
		key := b.BillingDate.Format("2006-01")
		mt, ok := byMonth[key]
		if !ok {
			mt = &MonthlyTotal{Month: key, Total: decimal.Zero}
			byMonth[key] = mt
		}
		mt.Total = mt.Total.Add(b.Amount)
		mt.Bills++
	}

	out := make([]MonthlyTotal, 0, len(byMonth))
	for _, mt := range byMonth {
		out = append(out, *mt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// RecordCallbackEvent persists a gateway callback idempotently.
func (s *Service) RecordCallbackEvent(ctx context.Context, in CallbackEventInput) (bool, *models.PaymentCallbackEvent, error) {
	_ = ctx
	if in.Provider == "" {
		return false, nil, errors.New("provider is required")
	}
	event := &models.PaymentCallbackEvent{
		Provider:          in.Provider,
		CheckoutRequestID: in.CheckoutRequestID,
		ResultCode:        in.ResultCode,
		ResultDesc:        in.ResultDesc,
		ReceiptNumber:     in.ReceiptNumber,
		Amount:            in.Amount,
		AmountMismatch:    in.AmountMismatch,
		BillID:            in.BillID,
		PayloadJSON:       in.PayloadJSON,
		SignatureValid:    in.SignatureValid,
	}
	return s.repo.CreateCallbackEventIfNotExists(event)
}

// MarkCallbackProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkCallbackProcessed(ctx context.Context, eventID uint, processingErr error) error {
	_ = ctx
	if eventID == 0 {
		return errors.New("callback_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkCallbackProcessed(eventID, errMsg)
}
