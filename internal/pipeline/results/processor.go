package results

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/microbrsoil-backend/internal/data/repos/pipeline"
	soilrepo "github.com/yungbote/microbrsoil-backend/internal/data/repos/soil"
	domain "github.com/yungbote/microbrsoil-backend/internal/domain/pipeline"
	"github.com/yungbote/microbrsoil-backend/internal/domain/soil"
	"github.com/yungbote/microbrsoil-backend/internal/platform/dbctx"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

const (
	FileAlphaDiversity = "alpha_diversity_metrics.csv"
	FileOTUTable       = "otu_table.csv"
	FileTaxonomy       = "taxonomy_table.csv"
	FileMetadata       = "mock_metadata.csv"
)

// ExpectedFiles lists the artifacts a pipeline run is expected to leave in its output dir.
var ExpectedFiles = []string{FileAlphaDiversity, FileOTUTable, FileTaxonomy, FileMetadata}

var taxonomyRanks = []string{"kingdom", "phylum", "class", "order", "family", "genus", "species"}

var alphaMetrics = []string{"observed", "shannon", "simpson", "chao1", "goods"}

// Outcome describes what one Process call persisted.
type Outcome struct {
	Result    *domain.Result
	Missing   []string
	SoilID    *uuid.UUID
	Samples   int
	AlphaRows int
	Enriched  bool
	EnrichErr error
}

type Processor struct {
	db      *gorm.DB
	log     *logger.Logger
	results pipeline.ResultRepo
	soils   soilrepo.SoilRepo
	samples soilrepo.SampleRepo
}

func NewProcessor(
	db *gorm.DB,
	baseLog *logger.Logger,
	results pipeline.ResultRepo,
	soils soilrepo.SoilRepo,
	samples soilrepo.SampleRepo,
) *Processor {
	return &Processor{
		db:      db,
		log:     baseLog.With("component", "ResultProcessor"),
		results: results,
		soils:   soils,
		samples: samples,
	}
}

// Process records the run's artifacts and, when the alpha, OTU and taxonomy tables
// are all present, parses them into a per-run soil anchor with samples and alpha rows.
// Only failing to record the result row is returned as an error; enrichment problems
// are logged and reported on the Outcome.
func (p *Processor) Process(ctx context.Context, runID uuid.UUID, outputDir string, ownerID *uuid.UUID) (*Outcome, error) {
	if runID == uuid.Nil {
		return nil, fmt.Errorf("process results: missing run id")
	}
	found := map[string]string{}
	out := &Outcome{}
	for _, name := range ExpectedFiles {
		path := filepath.Join(outputDir, name)
		st, err := os.Stat(path)
		if err != nil || st.IsDir() {
			out.Missing = append(out.Missing, name)
			continue
		}
		found[name] = path
	}
	if len(out.Missing) > 0 {
		p.log.Warn("Pipeline output is missing expected files",
			"run_id", runID,
			"output_dir", outputDir,
			"missing", out.Missing,
		)
	}

	res := &domain.Result{
		RunID:              runID,
		AlphaDiversityFile: ref(found, FileAlphaDiversity),
		OTUTableFile:       ref(found, FileOTUTable),
		TaxonomyFile:       ref(found, FileTaxonomy),
		MetadataFile:       ref(found, FileMetadata),
	}
	if err := p.results.Upsert(dbctx.Context{Ctx: ctx}, res); err != nil {
		return nil, fmt.Errorf("save pipeline result: %w", err)
	}
	out.Result = res

	if found[FileAlphaDiversity] == "" || found[FileOTUTable] == "" || found[FileTaxonomy] == "" {
		p.log.Info("Skipping result enrichment", "run_id", runID)
		return out, nil
	}
	if err := p.enrich(ctx, runID, ownerID, found, out); err != nil {
		out.EnrichErr = err
		p.log.Error("Result enrichment failed", "run_id", runID, "error", err)
		return out, nil
	}
	out.Enriched = true
	out.Result.SoilID = out.SoilID
	p.log.Info("Result enrichment finished",
		"run_id", runID,
		"samples", out.Samples,
		"alpha_rows", out.AlphaRows,
	)
	return out, nil
}

type parsedTables struct {
	alpha    *Table
	otu      *Table
	taxonomy *Table
	metadata *Table
}

func (p *Processor) enrich(ctx context.Context, runID uuid.UUID, ownerID *uuid.UUID, found map[string]string, out *Outcome) error {
	var t parsedTables
	g, _ := errgroup.WithContext(ctx)
	load := func(name string, dst **Table) {
		path := found[name]
		if path == "" {
			return
		}
		g.Go(func() error {
			tbl, err := ReadTable(path)
			if err != nil {
				return err
			}
			*dst = tbl
			return nil
		})
	}
	load(FileAlphaDiversity, &t.alpha)
	load(FileOTUTable, &t.otu)
	load(FileTaxonomy, &t.taxonomy)
	load(FileMetadata, &t.metadata)
	if err := g.Wait(); err != nil {
		return err
	}

	anchor := p.anchorSoil(runID, ownerID, t.metadata)
	samples := joinSamples(anchor.ID, t.taxonomy, t.otu)
	alpha := alphaRows(anchor.ID, t.alpha)

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := p.soils.DeleteByRunID(dbc, runID); err != nil {
			return fmt.Errorf("clear previous enrichment: %w", err)
		}
		if err := p.soils.Create(dbc, anchor); err != nil {
			return fmt.Errorf("create soil anchor: %w", err)
		}
		if err := p.samples.CreateSamples(dbc, samples); err != nil {
			return fmt.Errorf("create samples: %w", err)
		}
		if err := p.samples.CreateAlpha(dbc, alpha); err != nil {
			return fmt.Errorf("create alpha diversity: %w", err)
		}
		return p.results.SetSoilID(dbc, runID, anchor.ID)
	})
	if err != nil {
		return err
	}
	out.SoilID = &anchor.ID
	out.Samples = len(samples)
	out.AlphaRows = len(alpha)
	return nil
}

func (p *Processor) anchorSoil(runID uuid.UUID, ownerID *uuid.UUID, metadata *Table) *soil.Soil {
	rid := runID
	s := &soil.Soil{
		ID:         uuid.New(),
		SampleName: "Pipeline_" + runID.String(),
		OwnerID:    ownerID,
		RunID:      &rid,
	}
	if metadata == nil || len(metadata.Rows) == 0 {
		return s
	}
	row := metadata.Rows[0]
	s.SoilDepth = row.Str("soil_depth")
	s.EnvBroadScale = row.Str("env_broad_scale")
	s.EnvLocalScale = row.Str("env_local_scale")
	s.EnvMedium = row.Str("env_medium")
	s.GeoLocName = row.Str("geo_loc_name")
	s.SoilType = row.Str("soil_type")
	s.Elevation = num(row, "elev")
	s.PH = num(row, "ph")
	s.TotOrgCarb = num(row, "tot_org_carb")
	s.TotNitro = num(row, "tot_nitro")
	if raw := row.Str("collection_date"); raw != nil {
		if d, ok := parseDate(*raw); ok {
			s.CollectionDate = &d
		}
	}
	if raw := row.Str("lat_lon"); raw != nil {
		pt, err := soil.ParseLatLon(*raw)
		if err != nil {
			p.log.Warn("Ignoring unparseable lat_lon", "run_id", runID, "lat_lon", *raw, "error", err)
		} else {
			s.Latitude = &pt.Latitude
			s.Longitude = &pt.Longitude
		}
	}
	return s
}

// joinSamples emits one sample per taxonomy row that names at least one rank.
// OTU counts come from the OTU row with the same sequence; its numeric columns
// become the per-sample counts.
func joinSamples(soilID uuid.UUID, taxonomy, otu *Table) []*soil.Sample {
	counts := map[string]soil.OTUCounts{}
	if otu != nil {
		for _, row := range otu.Rows {
			seq, _ := sequenceKey(row)
			if seq == "" {
				continue
			}
			c := soil.OTUCounts{}
			for _, col := range otu.Header {
				if col == KeyColumn {
					continue
				}
				if v, ok := row.Num(col); ok {
					c[col] = v
				}
			}
			counts[seq] = c
		}
	}

	out := []*soil.Sample{}
	seen := map[string]bool{}
	if taxonomy == nil {
		return out
	}
	for _, row := range taxonomy.Rows {
		seq, raw := sequenceKey(row)
		if seq == "" || seen[seq] || !hasRank(row) {
			continue
		}
		seen[seq] = true
		s := &soil.Sample{
			ID:       uuid.New(),
			SoilID:   soilID,
			Sequence: raw,
			Kingdom:  row.Str("kingdom"),
			Phylum:   row.Str("phylum"),
			Class:    row.Str("class"),
			Order:    row.Str("order"),
			Family:   row.Str("family"),
			Genus:    row.Str("genus"),
			Species:  row.Str("species"),
		}
		s.OTUCounts = counts[seq]
		if s.OTUCounts == nil {
			s.OTUCounts = soil.OTUCounts{}
		}
		out = append(out, s)
	}
	return out
}

func alphaRows(soilID uuid.UUID, alpha *Table) []*soil.AlphaDiversity {
	out := []*soil.AlphaDiversity{}
	if alpha == nil {
		return out
	}
	for _, row := range alpha.Rows {
		vals := make([]float64, len(alphaMetrics))
		complete := true
		for i, m := range alphaMetrics {
			v, ok := row.Num(m)
			if !ok {
				complete = false
				break
			}
			vals[i] = v
		}
		if !complete {
			continue
		}
		label := ""
		if l := row.Str(KeyColumn); l != nil {
			label = *l
		}
		out = append(out, &soil.AlphaDiversity{
			ID:       uuid.New(),
			SoilID:   soilID,
			Label:    label,
			Observed: vals[0],
			Shannon:  vals[1],
			Simpson:  vals[2],
			Chao1:    vals[3],
			Goods:    vals[4],
		})
	}
	return out
}

// sequenceKey returns the join key (case and whitespace folded) and the row name as written.
func sequenceKey(row Row) (key, raw string) {
	s := row.Str(KeyColumn)
	if s == nil {
		return "", ""
	}
	return strings.ToUpper(strings.Join(strings.Fields(*s), "")), strings.TrimSpace(*s)
}

func hasRank(row Row) bool {
	for _, r := range taxonomyRanks {
		if row[r] != nil {
			return true
		}
	}
	return false
}

func num(row Row, key string) *float64 {
	v, ok := row.Num(key)
	if !ok {
		return nil
	}
	return &v
}

func ref(found map[string]string, name string) *string {
	p, ok := found[name]
	if !ok {
		return nil
	}
	return &p
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "2006-01", "2006"}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d.UTC(), true
		}
	}
	return time.Time{}, false
}

// ErrNoOutput reports an output directory that does not exist at all.
var ErrNoOutput = errors.New("pipeline produced no output directory")

// CheckOutputDir fails when dir is absent, so a script that exited cleanly
// without writing anything is still treated as a results error.
func CheckOutputDir(dir string) error {
	st, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNoOutput
		}
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("%s is not a directory: %w", dir, ErrNoOutput)
	}
	return nil
}
