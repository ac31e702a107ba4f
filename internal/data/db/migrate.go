package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/microbrsoil-backend/internal/domain/pipeline"
	"github.com/yungbote/microbrsoil-backend/internal/domain/soil"
	"github.com/yungbote/microbrsoil-backend/internal/domain/user"
)

func AutoMigrateAll(db *gorm.DB) error {
	err := db.AutoMigrate(
		// Identity
		&user.User{},

		// Pipeline lifecycle
		&pipeline.Run{},
		&pipeline.RunLog{},
		&pipeline.Result{},

		// Scientific records
		&soil.Soil{},
		&soil.Sample{},
		&soil.AlphaDiversity{},
	)
	if err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}
