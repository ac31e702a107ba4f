package pipeline_run

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/yungbote/microbrsoil-backend/internal/domain/pipeline"
	"github.com/yungbote/microbrsoil-backend/internal/jobs/queue"
	jobrt "github.com/yungbote/microbrsoil-backend/internal/jobs/runtime"
	"github.com/yungbote/microbrsoil-backend/internal/pipeline/invoker"
	"github.com/yungbote/microbrsoil-backend/internal/pipeline/results"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil {
		return nil
	}
	payload, err := queue.ParsePayload(jc.Payload())
	if err != nil {
		return jc.Fail(pipeline.ErrorKindDispatch, jobrt.Permanent(err))
	}
	variant, err := p.catalog.Lookup(payload.PipelineType)
	if err != nil {
		return jc.Fail(pipeline.ErrorKindDispatch, jobrt.Permanent(err))
	}

	started, err := jc.Start()
	if err != nil {
		return err
	}
	if !started {
		return nil
	}

	outDir := filepath.Join(p.resultsDir, payload.RunID.String())
	extra := map[string]string{}
	if payload.Meta.BarcodesPath != "" {
		extra["barcodes_path"] = payload.Meta.BarcodesPath
	}
	jc.Logf("running %s pipeline (%s) on %d file(s)", variant.Name, filepath.Base(variant.Script), max(1, len(payload.Meta.AllFiles)))

	res, err := p.invoker.Invoke(jc.Ctx, invoker.Request{
		Variant:   variant,
		InputPath: payload.FastqPath,
		OutputDir: outDir,
		ExtraArgs: extra,
	})
	if err != nil {
		switch {
		case errors.Is(err, invoker.ErrTimeout):
			return jc.Fail(pipeline.ErrorKindTimeout, jobrt.Permanent(err))
		case errors.Is(err, context.Canceled):
			// worker shutdown; asynq puts the task back without spending a retry
			jc.Logf("attempt %d interrupted", jc.Attempt)
			return err
		default:
			return jc.Fail(pipeline.ErrorKindScript, err)
		}
	}
	if ms, ok := res.Metadata["duration_ms"].(int64); ok {
		jc.Logf("pipeline script finished in %dms", ms)
	}

	if err := results.CheckOutputDir(outDir); err != nil {
		return jc.Fail(pipeline.ErrorKindResults, err)
	}
	outcome, err := p.results.Process(jc.Ctx, payload.RunID, outDir, payload.UserID())
	if err != nil {
		return jc.Fail(pipeline.ErrorKindResults, err)
	}
	for _, name := range outcome.Missing {
		jc.Logf("warning: expected output %s not found", name)
	}
	if outcome.EnrichErr != nil {
		jc.Logf("warning: result enrichment skipped: %v", outcome.EnrichErr)
	} else if outcome.Enriched {
		jc.Logf("parsed %d samples and %d alpha diversity rows", outcome.Samples, outcome.AlphaRows)
	}

	return jc.Succeed()
}
