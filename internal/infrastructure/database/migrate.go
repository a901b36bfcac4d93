package database

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/janhq/mention-agent/internal/infrastructure/database/entities"
)

// AutoMigrate brings the reply history schema up to date.
func AutoMigrate(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&entities.ReplyRecord{},
	); err != nil {
		return err
	}

	log.Info().Msg("database schema up to date")
	return nil
}
