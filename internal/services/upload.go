package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	pipelinerepo "github.com/yungbote/microbrsoil-backend/internal/data/repos/pipeline"
	"github.com/yungbote/microbrsoil-backend/internal/domain/pipeline"
	"github.com/yungbote/microbrsoil-backend/internal/jobs/queue"
	"github.com/yungbote/microbrsoil-backend/internal/platform/apierr"
	"github.com/yungbote/microbrsoil-backend/internal/platform/ctxutil"
	"github.com/yungbote/microbrsoil-backend/internal/platform/dbctx"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

const (
	DefaultUploadMaxFileBytes int64 = 10 << 30
	DefaultUploadMaxFiles           = 10

	uploadFormOverhead int64 = 1 << 20
)

// AllowedUploadExtensions are matched against the lowercased file name suffix.
var AllowedUploadExtensions = []string{".fastq.gz", ".fastq", ".fq", ".gz", ".fasta", ".fa", ".csv", ".txt"}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type UploadConfig struct {
	Dir          string
	MaxFileBytes int64
	MaxFiles     int
}

type UploadInput struct {
	PipelineType string
	Files        []*multipart.FileHeader
	BarcodesPath string
}

type UploadOutput struct {
	Success      bool      `json:"success"`
	RunID        uuid.UUID `json:"runId"`
	JobID        string    `json:"jobId"`
	PipelineType string    `json:"pipelineType"`
	UploadPath   string    `json:"uploadPath"`
	Files        []string  `json:"files"`
}

type UploadService interface {
	Upload(ctx context.Context, in UploadInput) (*UploadOutput, error)
}

type uploadService struct {
	log   *logger.Logger
	runs  pipelinerepo.RunRepo
	queue queue.Queue
	cfg   UploadConfig
}

func (c UploadConfig) withDefaults() UploadConfig {
	if c.Dir == "" {
		c.Dir = "uploads"
	}
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = DefaultUploadMaxFileBytes
	}
	if c.MaxFiles <= 0 {
		c.MaxFiles = DefaultUploadMaxFiles
	}
	return c
}

// MaxRequestBytes bounds a whole upload request: every file at its size limit plus form overhead.
func (c UploadConfig) MaxRequestBytes() int64 {
	c = c.withDefaults()
	return int64(c.MaxFiles)*c.MaxFileBytes + uploadFormOverhead
}

func NewUploadService(log *logger.Logger, runs pipelinerepo.RunRepo, q queue.Queue, cfg UploadConfig) UploadService {
	return &uploadService{
		log:   log.With("service", "UploadService"),
		runs:  runs,
		queue: q,
		cfg:   cfg.withDefaults(),
	}
}

func (s *uploadService) Upload(ctx context.Context, in UploadInput) (*UploadOutput, error) {
	pipelineType, err := pipeline.ParseType(in.PipelineType)
	if err != nil {
		return nil, apierr.BadRequest("invalid_pipeline_type", err)
	}
	if err := s.validate(in.Files); err != nil {
		return nil, err
	}

	runID := uuid.New()
	dir := filepath.Join(s.cfg.Dir, runID.String())
	paths, err := s.store(dir, in.Files)
	if err != nil {
		_ = os.RemoveAll(dir)
		s.log.Error("store upload failed", "run_id", runID, "error", err)
		return nil, apierr.New(http.StatusInternalServerError, "upload_write_failed", err)
	}

	filesJSON, _ := json.Marshal(paths)
	run := &pipeline.Run{
		RunID:         runID,
		UserID:        ctxutil.UserID(ctx),
		PipelineType:  pipelineType,
		InputFilePath: paths[0],
		InputFiles:    datatypes.JSON(filesJSON),
		Status:        pipeline.StatusQueued,
	}
	dbc := dbctx.Context{Ctx: ctx}
	if err := s.runs.Create(dbc, run); err != nil {
		_ = os.RemoveAll(dir)
		return nil, apierr.New(http.StatusInternalServerError, "create_run_failed", err)
	}

	uploadedBy := "anonymous"
	if run.UserID != nil {
		uploadedBy = run.UserID.String()
	}
	payload := queue.Payload{
		RunID:        runID,
		FastqPath:    paths[0],
		PipelineType: pipelineType,
		Meta: queue.Meta{
			UploadedBy:   uploadedBy,
			AllFiles:     paths,
			BarcodesPath: strings.TrimSpace(in.BarcodesPath),
		},
	}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		payload.TraceID = td.TraceID
		payload.RequestID = td.RequestID
	}

	jobID, err := s.queue.Enqueue(ctx, payload)
	if err != nil {
		if _, mErr := s.runs.MarkFailed(dbc, runID, pipeline.ErrorKindDispatch, err); mErr != nil {
			s.log.Error("mark run failed after enqueue error", "run_id", runID, "error", mErr)
		}
		return nil, apierr.New(http.StatusInternalServerError, "enqueue_failed", err)
	}
	if _, err := s.runs.SetJobID(dbc, runID, jobID); err != nil {
		s.log.Warn("record job id failed", "run_id", runID, "job_id", jobID, "error", err)
	}
	_ = s.runs.AppendLog(dbc, runID, fmt.Sprintf("queued %s pipeline with %d file(s)", pipelineType, len(paths)))

	s.log.Info("Pipeline run queued",
		"run_id", runID,
		"job_id", jobID,
		"pipeline_type", pipelineType,
		"files", len(paths),
	)
	return &UploadOutput{
		Success:      true,
		RunID:        runID,
		JobID:        jobID,
		PipelineType: pipelineType,
		UploadPath:   dir,
		Files:        paths,
	}, nil
}

func (s *uploadService) validate(files []*multipart.FileHeader) error {
	if len(files) == 0 {
		return apierr.BadRequest("no_file_uploaded", errors.New("no file uploaded"))
	}
	if len(files) > s.cfg.MaxFiles {
		return apierr.BadRequest("too_many_files", fmt.Errorf("at most %d files per upload, got %d", s.cfg.MaxFiles, len(files)))
	}
	for _, fh := range files {
		if fh.Size > s.cfg.MaxFileBytes {
			return apierr.New(http.StatusRequestEntityTooLarge, "file_too_large",
				fmt.Errorf("%s exceeds %d bytes", fh.Filename, s.cfg.MaxFileBytes))
		}
		if !AllowedUploadName(fh.Filename) {
			return apierr.BadRequest("invalid_file_type", fmt.Errorf("%s: unsupported file type", fh.Filename))
		}
	}
	return nil
}

func (s *uploadService) store(dir string, files []*multipart.FileHeader) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	used := map[string]int{}
	paths := make([]string, 0, len(files))
	for _, fh := range files {
		name := uniqueName(SanitizeFileName(fh.Filename), used)
		dst := filepath.Join(dir, name)
		if err := s.copyPart(fh, dst); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		paths = append(paths, dst)
	}
	return paths, nil
}

func (s *uploadService) copyPart(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, io.LimitReader(src, s.cfg.MaxFileBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n > s.cfg.MaxFileBytes {
		return fmt.Errorf("%s exceeds %d bytes", fh.Filename, s.cfg.MaxFileBytes)
	}
	return nil
}

// SanitizeFileName keeps the base name and replaces anything outside [A-Za-z0-9._-].
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "_" {
		return "upload"
	}
	return name
}

func AllowedUploadName(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range AllowedUploadExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func uniqueName(name string, used map[string]int) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
}
