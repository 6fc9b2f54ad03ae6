package database

import (
	"fmt"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

var (
	mu   sync.Mutex
	pool *gorm.DB
)

// Get returns the process-wide connection pool, creating it on first use.
// Callers never open ad hoc connections; repeated calls with the same config
// reuse the existing pool.
func Get(config *Config) (*gorm.DB, error) {
	mu.Lock()
	defer mu.Unlock()
	if pool != nil {
		return pool, nil
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		config.Host,
		config.User,
		config.Password,
		config.DBName,
		config.Port,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	pool = db
	return pool, nil
}

// Close tears down the pool on process shutdown.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if pool == nil {
		return nil
	}
	sqlDB, err := pool.DB()
	if err != nil {
		return err
	}
	pool = nil
	return sqlDB.Close()
}
