package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/microbrsoil-backend/internal/data/repos"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

type Repos struct {
	User   repos.UserRepo
	Run    repos.RunRepo
	Result repos.ResultRepo
	Soil   repos.SoilRepo
	Sample repos.SampleRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:   repos.NewUserRepo(db, log),
		Run:    repos.NewRunRepo(db, log),
		Result: repos.NewResultRepo(db, log),
		Soil:   repos.NewSoilRepo(db, log),
		Sample: repos.NewSampleRepo(db, log),
	}
}
