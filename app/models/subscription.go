package models

import "time"

// Subscription is one purchase of a service. It is created together with its
// Bill and never changed afterwards.
type Subscription struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CustomerID   uint      `gorm:"not null;index" json:"customer_id"`
	ServiceID    uint      `gorm:"not null;index" json:"service_id"`
	PurchaseDate time.Time `gorm:"type:timestamp;not null" json:"purchase_date"`
	ExpiryDate   time.Time `gorm:"type:timestamp;not null" json:"expiry_date"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`

	Service  Service   `gorm:"foreignKey:ServiceID" json:"service"`
	Customer *Customer `gorm:"foreignKey:CustomerID;constraint:OnDelete:RESTRICT" json:"customer,omitempty"`
}

// Active reports whether the subscription is still valid at t.
func (s *Subscription) Active(t time.Time) bool {
	return t.Before(s.ExpiryDate)
}
