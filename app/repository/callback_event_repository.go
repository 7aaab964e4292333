package repository

import (
	"github.com/ManuelReschke/SubsPortal/app/models"
	"gorm.io/gorm"
)

type callbackEventRepository struct {
	db *gorm.DB
}

func NewCallbackEventRepository(db *gorm.DB) CallbackEventRepository {
	return &callbackEventRepository{db: db}
}

// List returns events newest first
func (r *callbackEventRepository) List(offset, limit int) ([]models.PaymentCallbackEvent, error) {
	var events []models.PaymentCallbackEvent
	err := r.db.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&events).Error
	return events, err
}

// ListFailed returns events whose processing stored an error
func (r *callbackEventRepository) ListFailed(limit int) ([]models.PaymentCallbackEvent, error) {
	var events []models.PaymentCallbackEvent
	err := r.db.Where("processing_error <> ''").Order("created_at DESC").Limit(limit).Find(&events).Error
	return events, err
}

func (r *callbackEventRepository) GetByID(id uint) (*models.PaymentCallbackEvent, error) {
	var ev models.PaymentCallbackEvent
	if err := r.db.First(&ev, id).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}
