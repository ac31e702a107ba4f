package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelinerepo "github.com/yungbote/microbrsoil-backend/internal/data/repos/pipeline"
	"github.com/yungbote/microbrsoil-backend/internal/data/repos/testutil"
	"github.com/yungbote/microbrsoil-backend/internal/domain/pipeline"
	"github.com/yungbote/microbrsoil-backend/internal/platform/ctxutil"
)

func setup(t *testing.T) (pipelinerepo.RunRepo, *pipeline.Run) {
	t.Helper()
	db := testutil.DB(t)
	runs := pipelinerepo.NewRunRepo(db, testutil.Logger(t))
	run := &pipeline.Run{PipelineType: pipeline.TypeIllumina, InputFilePath: "/u/a.fastq"}
	require.NoError(t, runs.Create(testutil.Ctx(), run))
	return runs, run
}

func taskFor(runID uuid.UUID) *asynq.Task {
	return asynq.NewTask("pipeline:run", []byte(`{"runId":"`+runID.String()+`","traceId":"tr-1","requestId":"rq-1"}`))
}

func TestNewContextWithoutQueueMetadataIsFinal(t *testing.T) {
	runs, run := setup(t)
	jc := NewContext(context.Background(), taskFor(run.RunID), runs, testutil.Logger(t))

	assert.Equal(t, run.RunID, jc.RunID)
	assert.Equal(t, 1, jc.Attempt)
	assert.True(t, jc.FinalAttempt())
	td := ctxutil.GetTraceData(jc.Ctx)
	require.NotNil(t, td)
	assert.Equal(t, "tr-1", td.TraceID)
	assert.Equal(t, "rq-1", td.RequestID)
}

func TestStartSucceedLifecycle(t *testing.T) {
	runs, run := setup(t)
	jc := NewContext(context.Background(), taskFor(run.RunID), runs, testutil.Logger(t))

	ok, err := jc.Start()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, jc.Succeed())

	got, err := runs.GetByID(testutil.Ctx(), run.RunID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusCompleted, got.Status)
	assert.Contains(t, got.Logs, "completed")

	// late duplicate delivery
	ok, err = jc.Start()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFailOnEarlierAttemptKeepsRunRunning(t *testing.T) {
	runs, run := setup(t)
	jc := NewContext(context.Background(), taskFor(run.RunID), runs, testutil.Logger(t))
	jc.Attempt, jc.MaxAttempts = 1, 3

	_, err := jc.Start()
	require.NoError(t, err)
	ferr := jc.Fail(pipeline.ErrorKindScript, errors.New("exit 1"))
	require.Error(t, ferr)
	assert.False(t, errors.Is(ferr, asynq.SkipRetry))
	assert.Equal(t, pipeline.ErrorKindScript, KindOf(ferr, ""))

	got, err := runs.GetByID(testutil.Ctx(), run.RunID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusRunning, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "exit 1", *got.ErrorMessage)
}

func TestFailFinalAttemptMarksFailed(t *testing.T) {
	runs, run := setup(t)
	jc := NewContext(context.Background(), taskFor(run.RunID), runs, testutil.Logger(t))
	jc.Attempt, jc.MaxAttempts = 3, 3

	_, err := jc.Start()
	require.NoError(t, err)
	_ = jc.Fail(pipeline.ErrorKindTimeout, errors.New("deadline"))

	got, err := runs.GetByID(testutil.Ctx(), run.RunID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusFailed, got.Status)
	assert.Equal(t, pipeline.ErrorKindTimeout, got.ErrorKind)
	require.NotNil(t, got.FinishedAt)
}

func TestFailPermanentSkipsRetry(t *testing.T) {
	runs, run := setup(t)
	jc := NewContext(context.Background(), taskFor(run.RunID), runs, testutil.Logger(t))
	jc.Attempt, jc.MaxAttempts = 1, 3

	ferr := jc.Fail(pipeline.ErrorKindDispatch, Permanent(errors.New("unknown pipeline type")))
	assert.True(t, errors.Is(ferr, asynq.SkipRetry))

	got, err := runs.GetByID(testutil.Ctx(), run.RunID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusFailed, got.Status)
}

func TestDecodeMalformedPayloadIsPermanent(t *testing.T) {
	jc := NewContext(context.Background(), asynq.NewTask("pipeline:run", []byte("{")), nil, nil)
	var v map[string]any
	err := jc.Decode(&v)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, uuid.Nil, jc.RunID)
}

type fakeHandler struct{ typ string }

func (f fakeHandler) Type() string         { return f.typ }
func (f fakeHandler) Run(_ *Context) error { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(fakeHandler{typ: "b"}))
	require.NoError(t, r.Register(fakeHandler{typ: "a"}))
	assert.Error(t, r.Register(fakeHandler{typ: "a"}))
	assert.Error(t, r.Register(fakeHandler{}))
	assert.Error(t, r.Register(nil))

	_, ok := r.Get("a")
	assert.True(t, ok)
	_, ok = r.Get("zzz")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, r.Types())
}
