package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNonPositiveCharge = errors.New("charge must be greater than zero")

// Bill is an amount owed by a customer for a service. Bills are never deleted;
// Paid moves to true through payment confirmation or an admin override.
type Bill struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	CustomerID   uint            `gorm:"not null;index:idx_bills_customer_paid,priority:1" json:"customer_id"`
	ServiceID    uint            `gorm:"not null;index" json:"service_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	BillingDate  time.Time       `gorm:"type:timestamp;not null;index" json:"billing_date"`
	Paid         bool            `gorm:"not null;default:false;index:idx_bills_customer_paid,priority:2" json:"paid"`
	PaidAt       *time.Time      `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	MpesaReceipt string          `gorm:"type:varchar(32);default:''" json:"mpesa_receipt,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	Service  Service  `gorm:"foreignKey:ServiceID" json:"service"`
	Customer Customer `gorm:"foreignKey:CustomerID;constraint:OnDelete:RESTRICT" json:"-"`
}

// Reference is the account reference shown on the payer's phone.
func (b *Bill) Reference() string {
	return fmt.Sprintf("BILL-%d", b.ID)
}
