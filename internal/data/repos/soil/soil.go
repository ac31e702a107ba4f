package soil

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/yungbote/microbrsoil-backend/internal/domain/soil"
	"github.com/yungbote/microbrsoil-backend/internal/platform/dbctx"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

type Filters struct {
	Materials []string `json:"materials"`
	Locations []string `json:"locations"`
	SoilTypes []string `json:"soilTypes"`
}

type SoilRepo interface {
	Create(dbc dbctx.Context, s *domain.Soil) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Soil, error)
	List(dbc dbctx.Context, params ListParams) ([]*domain.Soil, int64, error)
	Filters(dbc dbctx.Context) (*Filters, error)
	WithinBox(dbc dbctx.Context, box domain.BoundingBox, limit int) ([]*domain.Soil, error)
	DeleteByRunID(dbc dbctx.Context, runID uuid.UUID) error
}

type soilRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSoilRepo(db *gorm.DB, baseLog *logger.Logger) SoilRepo {
	return &soilRepo{
		db:  db,
		log: baseLog.With("repo", "SoilRepo"),
	}
}

func (r *soilRepo) Create(dbc dbctx.Context, s *domain.Soil) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return dbc.Conn(r.db).Create(s).Error
}

func (r *soilRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Soil, error) {
	var out domain.Soil
	if err := dbc.Conn(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *soilRepo) List(dbc dbctx.Context, params ListParams) ([]*domain.Soil, int64, error) {
	filtered := func() *gorm.DB {
		q := dbc.Conn(r.db).Model(&domain.Soil{})
		if params.Search != "" {
			pat := likePattern(params.Search)
			q = q.Where(
				`(LOWER(sample_name) LIKE ? ESCAPE '\' OR LOWER(geo_loc_name) LIKE ? ESCAPE '\' OR LOWER(env_medium) LIKE ? ESCAPE '\')`,
				pat, pat, pat,
			)
		}
		if params.Material != "" {
			q = q.Where(`LOWER(env_medium) LIKE ? ESCAPE '\'`, likePattern(params.Material))
		}
		if params.Location != "" {
			q = q.Where(`LOWER(geo_loc_name) LIKE ? ESCAPE '\'`, likePattern(params.Location))
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	out := []*domain.Soil{}
	err := filtered().Order("created_at DESC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *soilRepo) Filters(dbc dbctx.Context) (*Filters, error) {
	transaction := dbc.Conn(r.db)
	out := &Filters{Materials: []string{}, Locations: []string{}, SoilTypes: []string{}}
	cols := []struct {
		name string
		dst  *[]string
	}{
		{"env_medium", &out.Materials},
		{"geo_loc_name", &out.Locations},
		{"soil_type", &out.SoilTypes},
	}
	for _, c := range cols {
		err := transaction.Model(&domain.Soil{}).
			Where(c.name+" IS NOT NULL AND "+c.name+" <> ''").
			Distinct(c.name).
			Order(c.name).
			Pluck(c.name, c.dst).Error
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *soilRepo) WithinBox(dbc dbctx.Context, box domain.BoundingBox, limit int) ([]*domain.Soil, error) {
	if limit <= 0 || limit > 5000 {
		limit = 1000
	}
	out := []*domain.Soil{}
	err := dbc.Conn(r.db).
		Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		Where("longitude BETWEEN ? AND ?", box.MinLon, box.MaxLon).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByRunID removes the run's anchor soil and everything parsed into it.
func (r *soilRepo) DeleteByRunID(dbc dbctx.Context, runID uuid.UUID) error {
	transaction := dbc.Conn(r.db)
	var ids []uuid.UUID
	if err := transaction.Model(&domain.Soil{}).Where("run_id = ?", runID).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := transaction.Where("soil_id IN ?", ids).Delete(&domain.Sample{}).Error; err != nil {
		return err
	}
	if err := transaction.Where("soil_id IN ?", ids).Delete(&domain.AlphaDiversity{}).Error; err != nil {
		return err
	}
	return transaction.Where("id IN ?", ids).Delete(&domain.Soil{}).Error
}
