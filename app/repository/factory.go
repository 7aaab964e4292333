package repository

import (
	"sync"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	rdb   redis.Cmdable
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB, rdb redis.Cmdable) *Factory {
	return &Factory{
		db:  db,
		rdb: rdb,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db, f.rdb)
	})
	return f.repos
}

func (f *Factory) GetCustomerRepository() CustomerRepository {
	return f.GetRepositories().Customer
}

func (f *Factory) GetServiceRepository() ServiceRepository {
	return f.GetRepositories().Service
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB, rdb redis.Cmdable) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db, rdb)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
