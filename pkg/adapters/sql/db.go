package sql

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Open opens a GORM connection for driver and migrates the botflow tables.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("sql: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: now,
	})
	if err != nil {
		return nil, fmt.Errorf("sql: connect %s: %w", driver, err)
	}

	if strings.EqualFold(driver, DriverSQLite) {
		// Every sqlite connection to ":memory:" is a separate database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sql: pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates the session and department tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&sessionRow{}, &departmentRow{}); err != nil {
		return fmt.Errorf("sql: auto-migrate: %w", err)
	}
	return nil
}
