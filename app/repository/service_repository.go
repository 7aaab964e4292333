package repository

import (
	"github.com/ManuelReschke/SubsPortal/app/models"
	"gorm.io/gorm"
)

type serviceRepository struct {
	db *gorm.DB
}

func NewServiceRepository(db *gorm.DB) ServiceRepository {
	return &serviceRepository{db: db}
}

// Create inserts a service. The active column has a default, so an inactive
// service needs a second write.
func (r *serviceRepository) Create(service *models.Service) error {
	active := service.Active
	if err := r.db.Create(service).Error; err != nil {
		return err
	}
	if !active {
		service.Active = false
		return r.db.Model(&models.Service{}).Where("id = ?", service.ID).Update("active", false).Error
	}
	return nil
}

func (r *serviceRepository) GetByID(id uint) (*models.Service, error) {
	var s models.Service
	if err := r.db.First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *serviceRepository) Update(service *models.Service) error {
	return r.db.Model(&models.Service{}).Where("id = ?", service.ID).Updates(map[string]interface{}{
		"name":           service.Name,
		"description":    service.Description,
		"charge":         service.Charge,
		"duration_value": service.DurationValue,
		"duration_unit":  service.DurationUnit,
		"active":         service.Active,
	}).Error
}

// Delete removes a service. Callers check HasBills first; billed services
// are deactivated instead.
func (r *serviceRepository) Delete(id uint) error {
	return r.db.Delete(&models.Service{}, id).Error
}

func (r *serviceRepository) ListAll() ([]models.Service, error) {
	var services []models.Service
	err := r.db.Order("id DESC").Find(&services).Error
	return services, err
}

func (r *serviceRepository) ListActive() ([]models.Service, error) {
	var services []models.Service
	err := r.db.Where("active = ?", true).Order("id DESC").Find(&services).Error
	return services, err
}

// ListNotSubscribed returns active services the customer never bought.
func (r *serviceRepository) ListNotSubscribed(customerID uint) ([]models.Service, error) {
	var services []models.Service
	sub := r.db.Model(&models.Subscription{}).Select("service_id").Where("customer_id = ?", customerID)
	err := r.db.Where("active = ?", true).
		Where("id NOT IN (?)", sub).
		Order("id DESC").
		Find(&services).Error
	return services, err
}

func (r *serviceRepository) ToggleActive(id uint) (*models.Service, error) {
	var s models.Service
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&s, id).Error; err != nil {
			return err
		}
		s.Active = !s.Active
		return tx.Model(&models.Service{}).Where("id = ?", id).Update("active", s.Active).Error
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *serviceRepository) HasBills(id uint) (bool, error) {
	var n int64
	err := r.db.Model(&models.Bill{}).Where("service_id = ?", id).Count(&n).Error
	return n > 0, err
}
