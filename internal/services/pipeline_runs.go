package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	pipelinerepo "github.com/yungbote/microbrsoil-backend/internal/data/repos/pipeline"
	"github.com/yungbote/microbrsoil-backend/internal/domain/pipeline"
	"github.com/yungbote/microbrsoil-backend/internal/jobs/queue"
	"github.com/yungbote/microbrsoil-backend/internal/platform/apierr"
	"github.com/yungbote/microbrsoil-backend/internal/platform/ctxutil"
	"github.com/yungbote/microbrsoil-backend/internal/platform/dbctx"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

var (
	errRunNotFound     = errors.New("pipeline run not found")
	errRunNotCompleted = errors.New("pipeline not completed yet")
)

// RunResults is the result view of a run. Result is nil until the run completes.
type RunResults struct {
	Run    *pipeline.Run
	Result *pipeline.Result
}

func (r *RunResults) Completed() bool {
	return r != nil && r.Run != nil && r.Run.Status == pipeline.StatusCompleted
}

type ResultFile struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	Modified    time.Time `json:"modified"`
	DownloadURL string    `json:"downloadUrl"`
}

type PipelineRunService interface {
	Get(ctx context.Context, runID uuid.UUID) (*pipeline.Run, error)
	Results(ctx context.Context, runID uuid.UUID) (*RunResults, error)
	ListMine(ctx context.Context) ([]*pipeline.Run, error)
	QueueStats(ctx context.Context) (*queue.Stats, error)
	ListFiles(ctx context.Context, runID uuid.UUID) ([]ResultFile, error)
	ResolveDownload(ctx context.Context, runID uuid.UUID, filename string) (string, error)
}

type pipelineRunService struct {
	log        *logger.Logger
	runs       pipelinerepo.RunRepo
	results    pipelinerepo.ResultRepo
	queue      queue.Queue
	resultsDir string
}

func NewPipelineRunService(
	log *logger.Logger,
	runs pipelinerepo.RunRepo,
	results pipelinerepo.ResultRepo,
	q queue.Queue,
	resultsDir string,
) PipelineRunService {
	return &pipelineRunService{
		log:        log.With("service", "PipelineRunService"),
		runs:       runs,
		results:    results,
		queue:      q,
		resultsDir: resultsDir,
	}
}

func (s *pipelineRunService) Get(ctx context.Context, runID uuid.UUID) (*pipeline.Run, error) {
	run, err := s.runs.GetByID(dbctx.Context{Ctx: ctx}, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, apierr.NotFound("run_not_found", errRunNotFound)
	}
	return run, nil
}

func (s *pipelineRunService) Results(ctx context.Context, runID uuid.UUID) (*RunResults, error) {
	run, err := s.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := &RunResults{Run: run}
	if !out.Completed() {
		return out, nil
	}
	res, err := s.results.GetByRunID(dbctx.Context{Ctx: ctx}, runID)
	if err != nil {
		return nil, err
	}
	out.Result = res
	return out, nil
}

func (s *pipelineRunService) ListMine(ctx context.Context) ([]*pipeline.Run, error) {
	userID := ctxutil.UserID(ctx)
	if userID == nil {
		return nil, apierr.New(http.StatusUnauthorized, "unauthorized", errors.New("user not authenticated"))
	}
	return s.runs.ListByUser(dbctx.Context{Ctx: ctx}, *userID, 100)
}

func (s *pipelineRunService) QueueStats(ctx context.Context) (*queue.Stats, error) {
	if s.queue == nil {
		return nil, apierr.New(http.StatusServiceUnavailable, "queue_unavailable", errors.New("job queue not configured"))
	}
	return s.queue.Stats(ctx)
}

func (s *pipelineRunService) runDir(runID uuid.UUID) string {
	return filepath.Join(s.resultsDir, runID.String())
}

func (s *pipelineRunService) ListFiles(ctx context.Context, runID uuid.UUID) ([]ResultFile, error) {
	if _, err := s.Get(ctx, runID); err != nil {
		return nil, err
	}
	out := []ResultFile{}
	entries, err := os.ReadDir(s.runDir(runID))
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, ResultFile{
			Name:        e.Name(),
			Size:        info.Size(),
			Modified:    info.ModTime().UTC(),
			DownloadURL: fmt.Sprintf("/results/download/%s/%s", runID, e.Name()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ResolveDownload returns the on-disk path of a completed run's result file.
// The path must stay inside the run's results directory.
func (s *pipelineRunService) ResolveDownload(ctx context.Context, runID uuid.UUID, filename string) (string, error) {
	run, err := s.Get(ctx, runID)
	if err != nil {
		return "", err
	}
	if run.Status != pipeline.StatusCompleted {
		return "", apierr.BadRequest("run_not_completed", errRunNotCompleted)
	}
	path, ok := ContainedPath(s.runDir(runID), filename)
	if !ok {
		return "", apierr.BadRequest("invalid_file_path", errors.New("invalid file path"))
	}
	st, err := os.Stat(path)
	if err != nil || !st.Mode().IsRegular() {
		return "", apierr.NotFound("file_not_found", errors.New("file not found"))
	}
	return path, nil
}

// ContainedPath joins name onto root and reports whether the cleaned result is
// strictly inside root.
func ContainedPath(root, name string) (string, bool) {
	if strings.TrimSpace(name) == "" || strings.ContainsRune(name, 0) {
		return "", false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	full := filepath.Join(absRoot, name)
	rel, err := filepath.Rel(absRoot, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}
