package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

const (
	DefaultQueue       = "pipeline-jobs"
	TypePipelineRun    = "pipeline:run"
	DefaultMaxAttempts = 3

	// The queue-level deadline sits past the script timeout so the invoker,
	// not asynq, decides when a run has taken too long.
	timeoutGrace     = 2 * time.Minute
	defaultRetention = 7 * 24 * time.Hour
	baseRetryDelay   = 5 * time.Second
	maxRetryDelay    = 10 * time.Minute
)

// Meta carries upload-time context the worker needs but the run row does not store.
type Meta struct {
	UploadedBy   string   `json:"uploadedBy"`
	AllFiles     []string `json:"allFiles,omitempty"`
	BarcodesPath string   `json:"barcodesPath,omitempty"`
}

// Payload is the body of a pipeline:run task.
type Payload struct {
	RunID        uuid.UUID `json:"runId"`
	FastqPath    string    `json:"fastqPath"`
	PipelineType string    `json:"pipelineType"`
	Meta         Meta      `json:"meta"`
	TraceID      string    `json:"traceId,omitempty"`
	RequestID    string    `json:"requestId,omitempty"`
}

// UserID returns the uploader when the upload was authenticated.
func (p *Payload) UserID() *uuid.UUID {
	by := strings.TrimSpace(p.Meta.UploadedBy)
	if by == "" || by == "anonymous" {
		return nil
	}
	id, err := uuid.Parse(by)
	if err != nil {
		return nil
	}
	return &id
}

var ErrMalformedPayload = errors.New("malformed pipeline task payload")

func NewPipelineTask(p Payload) (*asynq.Task, error) {
	if p.RunID == uuid.Nil {
		return nil, fmt.Errorf("pipeline task: missing run id")
	}
	if p.Meta.UploadedBy == "" {
		p.Meta.UploadedBy = "anonymous"
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePipelineRun, b), nil
}

func ParsePayload(raw []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.RunID == uuid.Nil {
		return nil, fmt.Errorf("%w: runId is required", ErrMalformedPayload)
	}
	if strings.TrimSpace(p.FastqPath) == "" {
		return nil, fmt.Errorf("%w: fastqPath is required", ErrMalformedPayload)
	}
	if strings.TrimSpace(p.PipelineType) == "" {
		return nil, fmt.Errorf("%w: pipelineType is required", ErrMalformedPayload)
	}
	return &p, nil
}

// RetryDelay backs off exponentially from five seconds, capped at ten minutes.
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n < 0 {
		n = 0
	}
	if n > 16 {
		return maxRetryDelay
	}
	d := baseRetryDelay * time.Duration(1<<uint(n))
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

// Stats is a snapshot of the pipeline queue.
type Stats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"waiting"`
	Active    int    `json:"active"`
	Scheduled int    `json:"delayed"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"failed"`
	Completed int    `json:"completed"`
	Paused    bool   `json:"paused"`
}

// Queue is what the HTTP side needs from the job queue.
type Queue interface {
	Enqueue(ctx context.Context, p Payload) (string, error)
	Stats(ctx context.Context) (*Stats, error)
}

type Config struct {
	RedisURL    string
	Queue       string
	MaxAttempts int
	// Timeout is the pipeline script timeout; the task deadline adds a grace period.
	Timeout   time.Duration
	Retention time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Queue) == "" {
		c.Queue = DefaultQueue
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Retention <= 0 {
		c.Retention = defaultRetention
	}
	return c
}

// RedisOpt parses a redis:// URL into asynq connection options.
func RedisOpt(url string) (asynq.RedisConnOpt, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("missing REDIS_URL")
	}
	opt, err := asynq.ParseRedisURI(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return opt, nil
}

type Client struct {
	log       *logger.Logger
	cfg       Config
	client    *asynq.Client
	inspector *asynq.Inspector
}

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	opt, err := RedisOpt(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		log:       log.With("component", "PipelineQueue"),
		cfg:       cfg,
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
	}, nil
}

// Options returns the enqueue options shared by every pipeline task.
func (c *Client) Options(runID uuid.UUID) []asynq.Option {
	opts := []asynq.Option{
		asynq.TaskID(runID.String()),
		asynq.Queue(c.cfg.Queue),
		asynq.MaxRetry(c.cfg.MaxAttempts - 1),
		asynq.Retention(c.cfg.Retention),
	}
	if c.cfg.Timeout > 0 {
		opts = append(opts, asynq.Timeout(c.cfg.Timeout+timeoutGrace))
	}
	return opts
}

// Enqueue submits the run. The task id is the run id, so a duplicate submit
// for the same run resolves to the already queued task.
func (c *Client) Enqueue(ctx context.Context, p Payload) (string, error) {
	task, err := NewPipelineTask(p)
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task, c.Options(p.RunID)...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		c.log.Warn("Pipeline task already enqueued", "run_id", p.RunID)
		return p.RunID.String(), nil
	}
	if err != nil {
		return "", fmt.Errorf("enqueue pipeline task: %w", err)
	}
	c.log.Info("Enqueued pipeline task",
		"run_id", p.RunID,
		"pipeline_type", p.PipelineType,
		"queue", info.Queue,
		"max_retry", info.MaxRetry,
	)
	return info.ID, nil
}

func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	out := &Stats{Queue: c.cfg.Queue}
	qi, err := c.inspector.GetQueueInfo(c.cfg.Queue)
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	out.Pending = qi.Pending
	out.Active = qi.Active
	out.Scheduled = qi.Scheduled
	out.Retry = qi.Retry
	out.Archived = qi.Archived
	out.Completed = qi.Completed
	out.Paused = qi.Paused
	return out, nil
}

func (c *Client) Close() error {
	var errs []error
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	if c.inspector != nil {
		errs = append(errs, c.inspector.Close())
	}
	return errors.Join(errs...)
}
