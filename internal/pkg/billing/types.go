package billing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrBillNotFound     = errors.New("bill not found")
	ErrServiceNotFound  = errors.New("service not found")
	ErrServiceInactive  = errors.New("service is not available")
	ErrCustomerRequired = errors.New("customer_id is required")
)

// BillFilter selects bills by payment state.
type BillFilter string

const (
	BillsAll    BillFilter = "all"
	BillsPaid   BillFilter = "paid"
	BillsUnpaid BillFilter = "unpaid"
)

// ParseBillFilter maps a tab query value to a filter. Unknown values list
// everything.
func ParseBillFilter(tab string) BillFilter {
	switch BillFilter(strings.ToLower(strings.TrimSpace(tab))) {
	case BillsPaid:
		return BillsPaid
	case BillsUnpaid:
		return BillsUnpaid
	default:
		return BillsAll
	}
}

// BillCounts holds paid and unpaid bill counts.
type BillCounts struct {
	Paid   int64 `json:"paid"`
	Unpaid int64 `json:"unpaid"`
}

func (c BillCounts) Total() int64 {
	return c.Paid + c.Unpaid
}

// MonthlyTotal is the sum of bill amounts for one YYYY-MM month.
type MonthlyTotal struct {
	Month string          `json:"month"`
	Total decimal.Decimal `json:"total"`
	Bills int             `json:"bills"`
}

// CallbackEventInput is the normalized input for callback event persistence.
type CallbackEventInput struct {
	Provider          string
	CheckoutRequestID string
	ResultCode        string
	ResultDesc        string
	ReceiptNumber     string
	Amount            decimal.Decimal
	AmountMismatch    bool
	BillID            uint
	PayloadJSON       string
	SignatureValid    bool
}
