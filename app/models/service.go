package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Duration units a service can be sold in.
const (
	DURATION_HOUR  = "HOUR"
	DURATION_DAY   = "DAY"
	DURATION_WEEK  = "WEEK"
	DURATION_MONTH = "MONTH"
)

// Service is a sellable product with a fixed charge and validity period.
type Service struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Description   string          `gorm:"type:text" json:"description" validate:"max=2000"`
	Charge        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"charge"`
	DurationValue int             `gorm:"not null;default:1" json:"duration_value" validate:"gte=1"`
	DurationUnit  string          `gorm:"type:varchar(10);not null;default:'DAY'" json:"duration_unit" validate:"oneof=HOUR DAY WEEK MONTH"`
	Active        bool            `gorm:"default:true;index" json:"active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Service) Validate() error {
	v := validator.New()
	if err := v.Struct(s); err != nil {
		return err
	}
	if !s.Charge.IsPositive() {
		return ErrNonPositiveCharge
	}
	return nil
}
