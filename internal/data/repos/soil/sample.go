package soil

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/yungbote/microbrsoil-backend/internal/domain/soil"
	"github.com/yungbote/microbrsoil-backend/internal/platform/dbctx"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

const (
	insertBatchSize   = 500
	defaultSearchRows = 200
	minApproxQueryLen = 4
)

type SampleRepo interface {
	CreateSamples(dbc dbctx.Context, rows []*domain.Sample) error
	CreateAlpha(dbc dbctx.Context, rows []*domain.AlphaDiversity) error
	ListBySoil(dbc dbctx.Context, soilID uuid.UUID) ([]*domain.Sample, error)
	ListAlphaBySoil(dbc dbctx.Context, soilID uuid.UUID) ([]*domain.AlphaDiversity, error)
	DistinctTaxa(dbc dbctx.Context, rank TaxonRank) ([]string, error)
	ByTaxon(dbc dbctx.Context, rank TaxonRank, value string) ([]*domain.Sample, error)
	ByExactSequence(dbc dbctx.Context, seq string) ([]*domain.Sample, error)
	BySimilarSequence(dbc dbctx.Context, seq string) ([]*domain.Sample, error)
}

type sampleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSampleRepo(db *gorm.DB, baseLog *logger.Logger) SampleRepo {
	return &sampleRepo{
		db:  db,
		log: baseLog.With("repo", "SampleRepo"),
	}
}

func (r *sampleRepo) CreateSamples(dbc dbctx.Context, rows []*domain.Sample) error {
	if len(rows) == 0 {
		return nil
	}
	for _, s := range rows {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
	}
	return dbc.Conn(r.db).CreateInBatches(rows, insertBatchSize).Error
}

func (r *sampleRepo) CreateAlpha(dbc dbctx.Context, rows []*domain.AlphaDiversity) error {
	if len(rows) == 0 {
		return nil
	}
	for _, a := range rows {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
	}
	return dbc.Conn(r.db).CreateInBatches(rows, insertBatchSize).Error
}

func (r *sampleRepo) ListBySoil(dbc dbctx.Context, soilID uuid.UUID) ([]*domain.Sample, error) {
	out := []*domain.Sample{}
	if err := dbc.Conn(r.db).Where("soil_id = ?", soilID).Order("sequence").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sampleRepo) ListAlphaBySoil(dbc dbctx.Context, soilID uuid.UUID) ([]*domain.AlphaDiversity, error) {
	out := []*domain.AlphaDiversity{}
	if err := dbc.Conn(r.db).Where("soil_id = ?", soilID).Order("label").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sampleRepo) DistinctTaxa(dbc dbctx.Context, rank TaxonRank) ([]string, error) {
	col := rank.column()
	out := []string{}
	err := dbc.Conn(r.db).Model(&domain.Sample{}).
		Where(col + " IS NOT NULL").
		Distinct(col).
		Order(col).
		Pluck(col, &out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sampleRepo) ByTaxon(dbc dbctx.Context, rank TaxonRank, value string) ([]*domain.Sample, error) {
	out := []*domain.Sample{}
	err := dbc.Conn(r.db).
		Where(rank.column()+" = ?", strings.TrimSpace(value)).
		Limit(defaultSearchRows).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sampleRepo) ByExactSequence(dbc dbctx.Context, seq string) ([]*domain.Sample, error) {
	out := []*domain.Sample{}
	raw := strings.TrimSpace(seq)
	seq = normalizeSequence(seq)
	if seq == "" {
		return out, nil
	}
	// Row names are stored as the pipeline wrote them; nucleotide queries match case-insensitively.
	err := dbc.Conn(r.db).
		Where("sequence = ? OR UPPER(sequence) = ?", raw, seq).
		Limit(defaultSearchRows).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BySimilarSequence returns samples whose sequence contains seq, case-insensitively.
func (r *sampleRepo) BySimilarSequence(dbc dbctx.Context, seq string) ([]*domain.Sample, error) {
	out := []*domain.Sample{}
	seq = normalizeSequence(seq)
	if len(seq) < minApproxQueryLen {
		return out, nil
	}
	err := dbc.Conn(r.db).
		Where(`LOWER(sequence) LIKE ? ESCAPE '\'`, likePattern(seq)).
		Limit(defaultSearchRows).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeSequence(seq string) string {
	return strings.ToUpper(strings.Join(strings.Fields(seq), ""))
}
