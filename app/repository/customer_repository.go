package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ManuelReschke/SubsPortal/app/models"
	"gorm.io/gorm"
)

type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Create(customer *models.Customer) error {
	return r.db.Create(customer).Error
}

func (r *customerRepository) GetByID(id uint) (*models.Customer, error) {
	var c models.Customer
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *customerRepository) GetByEmail(email string) (*models.Customer, error) {
	return models.FindCustomerByEmail(r.db, email)
}

func (r *customerRepository) EmailExists(email string) (bool, error) {
	var n int64
	err := r.db.Model(&models.Customer{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&n).Error
	return n > 0, err
}

func (r *customerRepository) Update(customer *models.Customer) error {
	return r.db.Save(customer).Error
}

func (r *customerRepository) Delete(id uint) error {
	res := r.db.Delete(&models.Customer{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List returns customers ordered by name
func (r *customerRepository) List(offset, limit int) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.db.Order("name ASC").Offset(offset).Limit(limit).Find(&customers).Error
	return customers, err
}

func (r *customerRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&models.Customer{}).Count(&n).Error
	return n, err
}

func (r *customerRepository) ListByRole(role string) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.db.Where("role = ?", role).Order("name ASC").Find(&customers).Error
	return customers, err
}

func (r *customerRepository) CountByRole(role string) (int64, error) {
	var n int64
	err := r.db.Model(&models.Customer{}).Where("role = ?", role).Count(&n).Error
	return n, err
}

// EnsureAdmin creates the admin account for email unless it already exists.
// An existing non-admin account with that email is an error; it is never
// promoted silently.
func EnsureAdmin(customers CustomerRepository, name, email, password string) (bool, error) {
	existing, err := customers.GetByEmail(email)
	switch {
	case err == nil:
		if !existing.IsAdmin() {
			return false, fmt.Errorf("account %s exists and is not an admin", existing.Email)
		}
		return false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, err
	}

	admin, err := models.CreateAdmin(name, email, "", password)
	if err != nil {
		return false, err
	}
	if err := customers.Create(admin); err != nil {
		return false, err
	}
	return true, nil
}
