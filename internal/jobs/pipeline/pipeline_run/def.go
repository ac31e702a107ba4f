package pipeline_run

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/microbrsoil-backend/internal/jobs/queue"
	"github.com/yungbote/microbrsoil-backend/internal/pipeline/invoker"
	"github.com/yungbote/microbrsoil-backend/internal/pipeline/results"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

// ResultProcessor persists what a finished script left in its output dir.
type ResultProcessor interface {
	Process(ctx context.Context, runID uuid.UUID, outputDir string, ownerID *uuid.UUID) (*results.Outcome, error)
}

type Pipeline struct {
	log        *logger.Logger
	catalog    *invoker.Catalog
	invoker    invoker.Invoker
	results    ResultProcessor
	resultsDir string
}

func New(
	baseLog *logger.Logger,
	catalog *invoker.Catalog,
	inv invoker.Invoker,
	processor ResultProcessor,
	resultsDir string,
) *Pipeline {
	return &Pipeline{
		log:        baseLog.With("job", queue.TypePipelineRun),
		catalog:    catalog,
		invoker:    inv,
		results:    processor,
		resultsDir: resultsDir,
	}
}

func (p *Pipeline) Type() string { return queue.TypePipelineRun }
