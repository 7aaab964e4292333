package repository

import (
	"time"

	"github.com/ManuelReschke/SubsPortal/app/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CustomerRepository defines customer account operations
type CustomerRepository interface {
	Create(customer *models.Customer) error
	GetByID(id uint) (*models.Customer, error)
	GetByEmail(email string) (*models.Customer, error)
	EmailExists(email string) (bool, error)
	Update(customer *models.Customer) error
	Delete(id uint) error
	List(offset, limit int) ([]models.Customer, error)
	ListByRole(role string) ([]models.Customer, error)
	Count() (int64, error)
	CountByRole(role string) (int64, error)
}

// ServiceRepository defines the catalogue operations used by customers and admins
type ServiceRepository interface {
	Create(service *models.Service) error
	GetByID(id uint) (*models.Service, error)
	Update(service *models.Service) error
	Delete(id uint) error
	ListAll() ([]models.Service, error)
	ListActive() ([]models.Service, error)
	ListNotSubscribed(customerID uint) ([]models.Service, error)
	ToggleActive(id uint) (*models.Service, error)
	HasBills(id uint) (bool, error)
}

// CallbackEventRepository exposes stored gateway callbacks to the back office
type CallbackEventRepository interface {
	List(offset, limit int) ([]models.PaymentCallbackEvent, error)
	ListFailed(limit int) ([]models.PaymentCallbackEvent, error)
	GetByID(id uint) (*models.PaymentCallbackEvent, error)
}

// PaymentStateRepository inspects the ephemeral payment keys kept in Redis
type PaymentStateRepository interface {
	ListAttemptKeys() ([]string, error)
	GetValue(key string) (string, error)
	GetTTL(key string) (time.Duration, error)
	DeleteKey(key string) (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Customer      CustomerRepository
	Service       ServiceRepository
	CallbackEvent CallbackEventRepository
	PaymentState  PaymentStateRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB, rdb redis.Cmdable) *Repositories {
	return &Repositories{
		Customer:      NewCustomerRepository(db),
		Service:       NewServiceRepository(db),
		CallbackEvent: NewCallbackEventRepository(db),
		PaymentState:  NewPaymentStateRepository(rdb),
	}
}
