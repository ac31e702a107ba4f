package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	pipelinerepo "github.com/yungbote/microbrsoil-backend/internal/data/repos/pipeline"
	"github.com/yungbote/microbrsoil-backend/internal/domain/pipeline"
	"github.com/yungbote/microbrsoil-backend/internal/jobs/queue"
	"github.com/yungbote/microbrsoil-backend/internal/jobs/runtime"
	"github.com/yungbote/microbrsoil-backend/internal/observability"
	"github.com/yungbote/microbrsoil-backend/internal/platform/dbctx"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

type Config struct {
	RedisURL        string
	Queue           string
	Concurrency     int
	ShutdownTimeout time.Duration
}

type Worker struct {
	log      *logger.Logger
	runs     pipelinerepo.RunRepo
	registry *runtime.Registry
	metrics  *observability.Metrics
	cfg      Config
}

func NewWorker(baseLog *logger.Logger, runs pipelinerepo.RunRepo, registry *runtime.Registry, cfg Config) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Queue == "" {
		cfg.Queue = queue.DefaultQueue
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	return &Worker{
		log:      baseLog.With("component", "JobWorker"),
		runs:     runs,
		registry: registry,
		cfg:      cfg,
	}
}

// WithMetrics records per-delivery outcomes on m.
func (w *Worker) WithMetrics(m *observability.Metrics) *Worker {
	w.metrics = m
	return w
}

// Run serves the queue until ctx is canceled, then drains in-flight tasks.
func (w *Worker) Run(ctx context.Context) error {
	opt, err := queue.RedisOpt(w.cfg.RedisURL)
	if err != nil {
		return err
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency:     w.cfg.Concurrency,
		Queues:          map[string]int{w.cfg.Queue: 1},
		RetryDelayFunc:  queue.RetryDelay,
		ErrorHandler:    asynq.ErrorHandlerFunc(w.handleError),
		ShutdownTimeout: w.cfg.ShutdownTimeout,
		Logger:          asynqLogger{w.log},
	})

	w.log.Info("Starting job worker",
		"queue", w.cfg.Queue,
		"concurrency", w.cfg.Concurrency,
		"task_types", w.registry.Types(),
	)
	if err := srv.Start(asynq.HandlerFunc(w.ProcessTask)); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	<-ctx.Done()
	w.log.Info("Stopping job worker")
	srv.Shutdown()
	return nil
}

// ProcessTask dispatches one delivery to its registered handler.
func (w *Worker) ProcessTask(ctx context.Context, task *asynq.Task) (err error) {
	ctx, span := otel.Tracer("microbrsoil/worker").Start(ctx, "task "+task.Type())
	defer span.End()

	jc := runtime.NewContext(ctx, task, w.runs, w.log)
	span.SetAttributes(
		attribute.String("task.type", jc.TaskType),
		attribute.String("task.id", jc.TaskID),
		attribute.String("run.id", jc.RunID.String()),
		attribute.Int("task.attempt", jc.Attempt),
	)
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = runtime.KindOf(err, "error")
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		w.metrics.ObserveTask(task.Type(), outcome, time.Since(start))
	}()

	h, ok := w.registry.Get(task.Type())
	if !ok {
		w.log.Warn("No handler registered for task_type", "task_type", task.Type(), "run_id", jc.RunID)
		return jc.Fail(pipeline.ErrorKindDispatch, runtime.Permanent(&missingHandlerError{TaskType: task.Type()}))
	}

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Task handler panic",
				"task_type", task.Type(),
				"run_id", jc.RunID,
				"panic", r,
			)
			err = jc.Fail(pipeline.ErrorKindPanic, &panicError{Val: r})
		}
	}()
	return h.Run(jc)
}

// handleError runs after every failed delivery. When the queue is done with the
// task it makes sure the run is not left in a non-terminal state.
func (w *Worker) handleError(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	exhausted := retried >= maxRetry || errors.Is(err, asynq.SkipRetry)
	if !exhausted {
		return
	}
	jc := runtime.NewContext(ctx, task, w.runs, w.log)
	if jc.RunID == uuid.Nil || w.runs == nil {
		return
	}
	cause := err
	var ke *runtime.KindError
	if errors.As(err, &ke) {
		cause = ke.Err
	}
	ok, markErr := w.runs.MarkFailed(
		dbctx.Context{Ctx: ctx},
		jc.RunID,
		runtime.KindOf(err, pipeline.ErrorKindScript),
		cause,
	)
	if markErr != nil {
		w.log.Error("reconcile failed run", "run_id", jc.RunID, "error", markErr)
		return
	}
	if ok {
		w.log.Warn("Reconciled run left non-terminal after final attempt", "run_id", jc.RunID)
	}
}

type missingHandlerError struct{ TaskType string }

func (e *missingHandlerError) Error() string { return "no handler registered for task_type=" + e.TaskType }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
