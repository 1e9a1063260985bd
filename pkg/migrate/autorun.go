package migrate

import (
	"context"
	"fmt"

	"github.com/Kopi-Koubou/aura-backend/pkg/config"
	"github.com/Kopi-Koubou/aura-backend/pkg/db"
	"github.com/Kopi-Koubou/aura-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot in dev when
// AURA_AUTO_MIGRATE is set. Other environments run cmd/migrate explicitly.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithOperation(ctx, "migrate.autorun")
	if err := Run(ctx, logg, sqlDB, Embedded(), "up"); err != nil {
		return err
	}
	logg.Info(ctx, "dev migrations applied")
	return nil
}
