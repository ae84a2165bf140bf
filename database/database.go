// Package database opens the fixture database and wraps the handful of gorm
// operations the regression scenarios are written against.
package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mpyw/gorm-view-regressions/config"
)

var (
	// ErrUnknownDialect is returned for a dialect other than sqlite, mysql or postgres.
	ErrUnknownDialect = errors.New("database: unknown dialect")
	// ErrEmptyPopulatePath is returned for a populate hint with an empty segment.
	ErrEmptyPopulatePath = errors.New("database: empty populate path")
)

// Dialect names as reported by gorm.Dialector.Name.
const (
	SQLite   = "sqlite"
	MySQL    = "mysql"
	Postgres = "postgres"
)

// Dialector returns the gorm dialector for cfg without connecting.
func Dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Dialect) {
	case SQLite, "":
		return sqlite.Open(cfg.DSN), nil
	case MySQL:
		return mysql.Open(cfg.DSN), nil
	case Postgres:
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, cfg.Dialect)
	}
}

// Open connects to the configured database. l receives every statement.
func Open(cfg *config.Config, l logger.Interface) (*gorm.DB, error) {
	d, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{Logger: l})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name(), err)
	}

	// Every connection to :memory: is its own database.
	if d.Name() == SQLite && strings.Contains(cfg.DSN, ":memory:") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", d.Name(), err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
