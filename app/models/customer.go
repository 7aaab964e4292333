package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_CUSTOMER = "customer"
	ROLE_ADMIN    = "admin"
)

// Customer is a portal account. Admins are customers with ROLE_ADMIN.
type Customer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Email     string    `gorm:"uniqueIndex;type:varchar(200);not null" json:"email" validate:"required,email,max=200"`
	Phone     string    `gorm:"type:varchar(20);default:''" json:"phone" validate:"omitempty,max=20"`
	Password  string    `gorm:"type:text" json:"-"`
	Role      string    `gorm:"type:varchar(20);default:'customer'" json:"role" validate:"oneof=customer admin"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Customer) Validate() error {
	v := validator.New()

	return v.Struct(c)
}

func (c *Customer) IsAdmin() bool {
	return c != nil && c.Role == ROLE_ADMIN
}

// CreateCustomer builds a validated customer with a hashed password. It does
// not persist anything.
func CreateCustomer(name, email, phone, password string) (*Customer, error) {
	return newAccount(name, email, phone, password, ROLE_CUSTOMER)
}

// CreateAdmin is CreateCustomer for back-office accounts.
func CreateAdmin(name, email, phone, password string) (*Customer, error) {
	return newAccount(name, email, phone, password, ROLE_ADMIN)
}

func newAccount(name, email, phone, password, role string) (*Customer, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	c := &Customer{
		Name:     strings.TrimSpace(name),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Phone:    strings.TrimSpace(phone),
		Password: pw,
		Role:     role,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func FindCustomerByEmail(db *gorm.DB, email string) (*Customer, error) {
	var c Customer
	err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
