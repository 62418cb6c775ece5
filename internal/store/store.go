// Package store is the gorm/sqlite persistence layer for projects, machine
// models, components, connections, and communication bindings, plus the
// simulation run audit log. It implements the lifecycle.SnapshotLoader
// contract the lifecycle manager consumes; nothing in the core depends on its concrete
// row types.
package store

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store holds the database connection and auto-migrates the entity schema
// on open, following the teacher's internal/database.NewDatabase pattern.
type Store struct {
	*gorm.DB
}

// Open connects to the sqlite database at path and migrates every record
// type this package owns.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&ProjectRecord{},
		&MachineModelRecord{},
		&ComponentRecord{},
		&ConnectionRecord{},
		&BindingRecord{},
		&RunRecord{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
