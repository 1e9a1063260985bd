package db

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Kopi-Koubou/aura-backend/pkg/db/models"
	"github.com/Kopi-Koubou/aura-backend/pkg/logger"
)

// NewSQLite opens a single-connection SQLite database and creates the schema
// from the models. Local development only; SQLite ignores row locks.
func NewSQLite(ctx context.Context, dsn string, logg *logger.Logger) (*Client, error) {
	if dsn == "" {
		dsn = "file:aura.db?cache=shared"
	}

	conn, err := gorm.Open(sqlite.Open(dsn), gormConfig(logg, 0))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := conn.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrating sqlite schema: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "dsn", dsn), "sqlite database ready")
	}
	return &Client{conn: conn}, nil
}
