package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/microbrsoil-backend/internal/clients/redis"
	soilrepo "github.com/yungbote/microbrsoil-backend/internal/data/repos/soil"
	"github.com/yungbote/microbrsoil-backend/internal/domain/soil"
	"github.com/yungbote/microbrsoil-backend/internal/platform/apierr"
	"github.com/yungbote/microbrsoil-backend/internal/platform/dbctx"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

const filtersCacheKey = "soil:filters"

type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalRecords int64 `json:"totalRecords"`
	Limit        int   `json:"limit"`
}

type SoilPage struct {
	Data       []*soil.Soil `json:"data"`
	Pagination Pagination   `json:"pagination"`
}

// SoilDetail is a soil record plus its typed coordinates.
type SoilDetail struct {
	*soil.Soil
	Coordinates *soil.GeoPoint `json:"coordinates"`
}

type TaxonLists struct {
	SpeciesList []string `json:"speciesList"`
	GenusList   []string `json:"genusList"`
}

type SoilCatalogService interface {
	List(ctx context.Context, params soilrepo.ListParams) (*SoilPage, error)
	Filters(ctx context.Context) (*soilrepo.Filters, error)
	Detail(ctx context.Context, id uuid.UUID) (*SoilDetail, error)
	TaxonLists(ctx context.Context) (*TaxonLists, error)
	SamplesByTaxon(ctx context.Context, rank, value string) ([]*soil.Sample, error)
	ExactSequence(ctx context.Context, seq string) ([]*soil.Sample, error)
	SimilarSequences(ctx context.Context, seq string) ([]*soil.Sample, error)
	WithinBox(ctx context.Context, box soil.BoundingBox) ([]*SoilDetail, error)
}

type soilCatalogService struct {
	log      *logger.Logger
	soils    soilrepo.SoilRepo
	samples  soilrepo.SampleRepo
	cache    redis.Cache
	cacheTTL time.Duration
}

func NewSoilCatalogService(
	log *logger.Logger,
	soils soilrepo.SoilRepo,
	samples soilrepo.SampleRepo,
	cache redis.Cache,
	cacheTTL time.Duration,
) SoilCatalogService {
	if cache == nil {
		cache = redis.NopCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &soilCatalogService{
		log:      log.With("service", "SoilCatalogService"),
		soils:    soils,
		samples:  samples,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

func (s *soilCatalogService) List(ctx context.Context, params soilrepo.ListParams) (*SoilPage, error) {
	if err := params.Normalize(); err != nil {
		return nil, apierr.BadRequest("invalid_query", err)
	}
	rows, total, err := s.soils.List(dbctx.Context{Ctx: ctx}, params)
	if err != nil {
		return nil, err
	}
	return &SoilPage{
		Data: rows,
		Pagination: Pagination{
			CurrentPage:  params.Page,
			TotalPages:   int(math.Ceil(float64(total) / float64(params.Limit))),
			TotalRecords: total,
			Limit:        params.Limit,
		},
	}, nil
}

// Filters serves the distinct filter values, cached for cacheTTL. Cache errors fall
// through to the database.
func (s *soilCatalogService) Filters(ctx context.Context) (*soilrepo.Filters, error) {
	var cached soilrepo.Filters
	hit, err := s.cache.GetJSON(ctx, filtersCacheKey, &cached)
	if err != nil {
		s.log.Warn("filters cache read failed", "error", err)
	}
	if hit {
		return &cached, nil
	}
	out, err := s.soils.Filters(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, filtersCacheKey, out, s.cacheTTL); err != nil {
		s.log.Warn("filters cache write failed", "error", err)
	}
	return out, nil
}

func (s *soilCatalogService) Detail(ctx context.Context, id uuid.UUID) (*SoilDetail, error) {
	row, err := s.soils.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apierr.NotFound("soil_not_found", errors.New("soil sample not found"))
	}
	return &SoilDetail{Soil: row, Coordinates: row.Coordinates()}, nil
}

func (s *soilCatalogService) TaxonLists(ctx context.Context) (*TaxonLists, error) {
	dbc := dbctx.Context{Ctx: ctx}
	species, err := s.samples.DistinctTaxa(dbc, soilrepo.RankSpecies)
	if err != nil {
		return nil, err
	}
	genus, err := s.samples.DistinctTaxa(dbc, soilrepo.RankGenus)
	if err != nil {
		return nil, err
	}
	return &TaxonLists{SpeciesList: species, GenusList: genus}, nil
}

func (s *soilCatalogService) SamplesByTaxon(ctx context.Context, rank, value string) ([]*soil.Sample, error) {
	r, err := soilrepo.ParseTaxonRank(rank)
	if err != nil {
		return nil, apierr.BadRequest("invalid_parameter_type", err)
	}
	if strings.TrimSpace(value) == "" {
		return nil, apierr.BadRequest("missing_parameter", errors.New("search parameter is required"))
	}
	rows, err := s.samples.ByTaxon(dbctx.Context{Ctx: ctx}, r, value)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apierr.NotFound("no_samples_found", errors.New("no samples found for the selected parameter"))
	}
	return rows, nil
}

func (s *soilCatalogService) ExactSequence(ctx context.Context, seq string) ([]*soil.Sample, error) {
	return s.samples.ByExactSequence(dbctx.Context{Ctx: ctx}, seq)
}

func (s *soilCatalogService) SimilarSequences(ctx context.Context, seq string) ([]*soil.Sample, error) {
	return s.samples.BySimilarSequence(dbctx.Context{Ctx: ctx}, seq)
}

func (s *soilCatalogService) WithinBox(ctx context.Context, box soil.BoundingBox) ([]*SoilDetail, error) {
	if err := box.Validate(); err != nil {
		return nil, apierr.BadRequest("invalid_bounding_box", err)
	}
	rows, err := s.soils.WithinBox(dbctx.Context{Ctx: ctx}, box, 0)
	if err != nil {
		return nil, err
	}
	out := make([]*SoilDetail, 0, len(rows))
	for _, r := range rows {
		out = append(out, &SoilDetail{Soil: r, Coordinates: r.Coordinates()})
	}
	return out, nil
}
