package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const PaymentProviderMpesa = "mpesa"

// PaymentCallbackEvent stores inbound gateway callbacks with deduplication
// metadata. Processing failures end up in ProcessingError. AmountMismatch is
// set when a successful callback reports a different amount than was charged.
type PaymentCallbackEvent struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	Provider          string          `gorm:"type:varchar(20);not null;index:ux_payment_callback_events_key,unique,priority:1" json:"provider"`
	CheckoutRequestID string          `gorm:"type:varchar(191);not null;default:'';index:ux_payment_callback_events_key,unique,priority:2" json:"checkout_request_id"`
	ResultCode        string          `gorm:"type:varchar(20);not null;default:'';index:ux_payment_callback_events_key,unique,priority:3" json:"result_code"`
	BillID            uint            `gorm:"index" json:"bill_id"`
	ResultDesc        string          `gorm:"type:varchar(255);default:''" json:"result_desc"`
	ReceiptNumber     string          `gorm:"type:varchar(32);default:''" json:"receipt_number"`
	Amount            decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	AmountMismatch    bool            `gorm:"not null;default:false;index" json:"amount_mismatch"`
	PayloadJSON       string          `gorm:"type:longtext;not null" json:"payload_json"`
	SignatureValid    bool            `gorm:"default:false;index" json:"signature_valid"`
	ProcessedAt       *time.Time      `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError   string          `gorm:"type:text" json:"processing_error"`
	CreatedAt         time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
