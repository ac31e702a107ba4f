package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	pipelinerepo "github.com/yungbote/microbrsoil-backend/internal/data/repos/pipeline"
	"github.com/yungbote/microbrsoil-backend/internal/platform/ctxutil"
	"github.com/yungbote/microbrsoil-backend/internal/platform/dbctx"
	"github.com/yungbote/microbrsoil-backend/internal/platform/logger"
)

/*
Context is the execution handle for one delivery of a queued task.
It wraps:
  - the delivery's context.Context (cancellation, queue deadline)
  - the task metadata asynq attaches (task id, retry count, max retry)
  - the run row, reachable only through Start/Logf/Fail/Succeed

Handlers never write pipeline_runs directly; every lifecycle write goes through
this object so that terminal runs stay terminal.
*/
type Context struct {
	Ctx         context.Context
	TaskType    string
	TaskID      string
	RunID       uuid.UUID
	Attempt     int
	MaxAttempts int
	Runs        pipelinerepo.RunRepo
	Log         *logger.Logger
	payload     []byte
}

// envelope is the part of every task payload the runtime reads for itself.
type envelope struct {
	RunID     string `json:"runId"`
	TraceID   string `json:"traceId"`
	RequestID string `json:"requestId"`
}

/*
NewContext builds a Context for a delivery. Attempt numbers are 1-based. When the
delivery carries no retry metadata (direct calls, tests) the attempt counts as the
only one, so failures are final.
*/
func NewContext(ctx context.Context, task *asynq.Task, runs pipelinerepo.RunRepo, log *logger.Logger) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &Context{
		Ctx:         ctx,
		TaskType:    task.Type(),
		Attempt:     1,
		MaxAttempts: 1,
		Runs:        runs,
		payload:     task.Payload(),
	}
	if id, ok := asynq.GetTaskID(ctx); ok {
		c.TaskID = id
	}
	retried, okRetry := asynq.GetRetryCount(ctx)
	maxRetry, okMax := asynq.GetMaxRetry(ctx)
	if okRetry && okMax {
		c.Attempt = retried + 1
		c.MaxAttempts = maxRetry + 1
	}

	var env envelope
	if err := json.Unmarshal(c.payload, &env); err == nil {
		if id, err := uuid.Parse(strings.TrimSpace(env.RunID)); err == nil {
			c.RunID = id
		}
		if env.TraceID != "" || env.RequestID != "" {
			c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{
				TraceID:   env.TraceID,
				RequestID: env.RequestID,
			})
		}
	}

	if log == nil {
		log = logger.Nop()
	}
	c.Log = log.With(
		"task_type", c.TaskType,
		"task_id", c.TaskID,
		"run_id", c.RunID,
		"attempt", c.Attempt,
	)
	return c
}

func (c *Context) Payload() []byte { return c.payload }

func (c *Context) Decode(dst any) error {
	if err := json.Unmarshal(c.payload, dst); err != nil {
		return Permanent(fmt.Errorf("decode payload: %w", err))
	}
	return nil
}

// FinalAttempt reports whether the queue will not deliver this task again on failure.
func (c *Context) FinalAttempt() bool {
	return c.Attempt >= c.MaxAttempts
}

func (c *Context) dbc() dbctx.Context { return dbctx.Context{Ctx: c.Ctx} }

/*
Start moves the run to running for this attempt. It returns false when the run
is already terminal, in which case the delivery is a late duplicate and the
handler should return nil without doing work.
*/
func (c *Context) Start() (bool, error) {
	if c.RunID == uuid.Nil {
		return false, Permanent(fmt.Errorf("task has no run id"))
	}
	ok, err := c.Runs.MarkRunning(c.dbc(), c.RunID)
	if err != nil {
		return false, err
	}
	if !ok {
		c.Log.Warn("Run is already terminal; dropping delivery")
		return false, nil
	}
	c.Logf("attempt %d/%d started", c.Attempt, c.MaxAttempts)
	return true, nil
}

// Logf appends a line to the run's log. Log writes never fail the run.
func (c *Context) Logf(format string, args ...any) {
	if c.Runs == nil || c.RunID == uuid.Nil {
		return
	}
	if err := c.Runs.AppendLog(c.dbc(), c.RunID, fmt.Sprintf(format, args...)); err != nil {
		c.Log.Warn("append run log failed", "error", err)
	}
}

/*
Fail records err against the run and returns the error the handler should hand
back to the queue.
  - Permanent errors and final attempts mark the run failed.
  - Earlier attempts keep the run running with the error recorded, and the
    returned error lets asynq schedule the retry.

Permanent errors come back wrapped in asynq.SkipRetry.
*/
func (c *Context) Fail(kind string, err error) error {
	if err == nil {
		err = errors.New("unknown error")
	}
	kerr := &KindError{Kind: kind, Err: err}
	permanent := IsPermanent(err)

	if c.Runs != nil && c.RunID != uuid.Nil {
		var writeErr error
		if permanent || c.FinalAttempt() {
			_, writeErr = c.Runs.MarkFailed(c.dbc(), c.RunID, kind, err)
		} else {
			_, writeErr = c.Runs.RecordAttemptError(c.dbc(), c.RunID, kind, err)
		}
		if writeErr != nil {
			c.Log.Error("record run failure failed", "error", writeErr)
		}
	}
	c.Log.Warn("Run attempt failed",
		"error_kind", kind,
		"final", permanent || c.FinalAttempt(),
		"error", err,
	)
	if permanent {
		return fmt.Errorf("%w: %w", asynq.SkipRetry, kerr)
	}
	return kerr
}

// Succeed marks the run completed. A run that already reached a terminal state is left alone.
func (c *Context) Succeed() error {
	ok, err := c.Runs.MarkCompleted(c.dbc(), c.RunID)
	if err != nil {
		return err
	}
	if ok {
		c.Logf("completed")
	}
	return nil
}

// KindError tags a run failure with its error kind.
type KindError struct {
	Kind string
	Err  error
}

func (e *KindError) Error() string { return e.Kind + ": " + e.Err.Error() }
func (e *KindError) Unwrap() error { return e.Err }

// KindOf returns the kind carried by err, or fallback.
func KindOf(err error, fallback string) string {
	var ke *KindError
	if errors.As(err, &ke) && ke.Kind != "" {
		return ke.Kind
	}
	return fallback
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil || IsPermanent(err) {
		return err
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe) || errors.Is(err, asynq.SkipRetry)
}
