package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/microbrsoil-backend/internal/data/repos/pipeline"
	"github.com/yungbote/microbrsoil-backend/internal/data/repos/soil"
	"github.com/yungbote/microbrsoil-backend/internal/data/repos/user"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo

type RunRepo = pipeline.RunRepo
type ResultRepo = pipeline.ResultRepo

type SoilRepo = soil.SoilRepo
type SampleRepo = soil.SampleRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }

func NewRunRepo(db *gorm.DB, baseLog *logger.Logger) RunRepo { return pipeline.NewRunRepo(db, baseLog) }
func NewResultRepo(db *gorm.DB, baseLog *logger.Logger) ResultRepo {
	return pipeline.NewResultRepo(db, baseLog)
}

func NewSoilRepo(db *gorm.DB, baseLog *logger.Logger) SoilRepo { return soil.NewSoilRepo(db, baseLog) }
func NewSampleRepo(db *gorm.DB, baseLog *logger.Logger) SampleRepo {
	return soil.NewSampleRepo(db, baseLog)
}
