package pipeline

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/yungbote/microbrsoil-backend/internal/domain/pipeline"
	"github.com/yungbote/microbrsoil-backend/internal/platform/dbctx"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

type ResultRepo interface {
	Upsert(dbc dbctx.Context, res *domain.Result) error
	GetByRunID(dbc dbctx.Context, runID uuid.UUID) (*domain.Result, error)
	SetSoilID(dbc dbctx.Context, runID uuid.UUID, soilID uuid.UUID) error
}

type resultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResultRepo(db *gorm.DB, baseLog *logger.Logger) ResultRepo {
	return &resultRepo{
		db:  db,
		log: baseLog.With("repo", "PipelineResultRepo"),
	}
}

// Upsert keeps exactly one result row per run; a redelivered job refreshes the file refs.
// On return res carries the stored row's id, soil and creation time.
func (r *resultRepo) Upsert(dbc dbctx.Context, res *domain.Result) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	conn := dbc.Conn(r.db)
	err := conn.
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "run_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"alpha_diversity_file",
				"otu_table_file",
				"taxonomy_file",
				"metadata_file",
			}),
		}).
		Create(res).Error
	if err != nil {
		return err
	}
	var stored domain.Result
	if err := conn.Where("run_id = ?", res.RunID).Take(&stored).Error; err != nil {
		return err
	}
	res.ID = stored.ID
	res.SoilID = stored.SoilID
	res.CreatedAt = stored.CreatedAt
	return nil
}

func (r *resultRepo) GetByRunID(dbc dbctx.Context, runID uuid.UUID) (*domain.Result, error) {
	var out domain.Result
	if err := dbc.Conn(r.db).Where("run_id = ?", runID).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *resultRepo) SetSoilID(dbc dbctx.Context, runID uuid.UUID, soilID uuid.UUID) error {
	return dbc.Conn(r.db).
		Model(&domain.Result{}).
		Where("run_id = ?", runID).
		Update("soil_id", soilID).Error
}
