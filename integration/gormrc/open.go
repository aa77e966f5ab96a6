package gormrc

import (
	"fmt"

	"github.com/hengadev/remotecare"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Dialector returns the gorm dialector for driver. Supported drivers are
// sqlite and mysql.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return sqlite.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("%w: unsupported database driver %q", remotecare.ErrInvalidConfiguration, driver)
	}
}

// Open connects to dsn and installs the plugin for v.
func Open(driver, dsn string, v *remotecare.Vault, cfg *gorm.Config) (*gorm.DB, error) {
	dialector, err := Dialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &gorm.Config{}
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", remotecare.ErrDatabaseUnavailable, driver, err)
	}
	if err := db.Use(New(v)); err != nil {
		return nil, err
	}
	return db, nil
}
