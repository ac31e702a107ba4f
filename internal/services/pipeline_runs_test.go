package services

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelinerepo "github.com/yungbote/microbrsoil-backend/internal/data/repos/pipeline"
	"github.com/yungbote/microbrsoil-backend/internal/data/repos/testutil"
	"github.com/yungbote/microbrsoil-backend/internal/domain/pipeline"
	"github.com/yungbote/microbrsoil-backend/internal/jobs/queue"
	"github.com/yungbote/microbrsoil-backend/internal/platform/ctxutil"
)

type runsFixture struct {
	svc        PipelineRunService
	runs       pipelinerepo.RunRepo
	results    pipelinerepo.ResultRepo
	resultsDir string
}

func newRunsFixture(t *testing.T, q queue.Queue) *runsFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	f := &runsFixture{
		runs:       pipelinerepo.NewRunRepo(db, log),
		results:    pipelinerepo.NewResultRepo(db, log),
		resultsDir: t.TempDir(),
	}
	f.svc = NewPipelineRunService(log, f.runs, f.results, q, f.resultsDir)
	return f
}

func (f *runsFixture) createRun(t *testing.T, userID *uuid.UUID) *pipeline.Run {
	t.Helper()
	run := &pipeline.Run{UserID: userID, PipelineType: pipeline.TypeIllumina, InputFilePath: "/uploads/R1.fastq"}
	require.NoError(t, f.runs.Create(testutil.Ctx(), run))
	return run
}

func (f *runsFixture) complete(t *testing.T, run *pipeline.Run, files map[string]string) {
	t.Helper()
	_, err := f.runs.MarkRunning(testutil.Ctx(), run.RunID)
	require.NoError(t, err)
	_, err = f.runs.MarkCompleted(testutil.Ctx(), run.RunID)
	require.NoError(t, err)
	dir := filepath.Join(f.resultsDir, run.RunID.String())
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func TestPipelineRunGetNotFound(t *testing.T) {
	f := newRunsFixture(t, &fakeQueue{})
	_, err := f.svc.Get(context.Background(), uuid.New())
	status, code := statusOf(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "run_not_found", code)
}

func TestPipelineRunResults(t *testing.T) {
	f := newRunsFixture(t, &fakeQueue{})
	run := f.createRun(t, nil)

	out, err := f.svc.Results(context.Background(), run.RunID)
	require.NoError(t, err)
	assert.False(t, out.Completed())
	assert.Nil(t, out.Result)

	f.complete(t, run, nil)
	otu := "/results/otu_table.csv"
	require.NoError(t, f.results.Upsert(testutil.Ctx(), &pipeline.Result{RunID: run.RunID, OTUTableFile: &otu}))

	out, err = f.svc.Results(context.Background(), run.RunID)
	require.NoError(t, err)
	assert.True(t, out.Completed())
	require.NotNil(t, out.Result)
	assert.Equal(t, otu, *out.Result.OTUTableFile)
}

func TestPipelineRunListMine(t *testing.T) {
	f := newRunsFixture(t, &fakeQueue{})
	_, err := f.svc.ListMine(context.Background())
	status, _ := statusOf(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)

	me, other := uuid.New(), uuid.New()
	f.createRun(t, &me)
	f.createRun(t, &me)
	f.createRun(t, &other)
	f.createRun(t, nil)

	ctx := ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: me})
	runs, err := f.svc.ListMine(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestPipelineRunQueueStats(t *testing.T) {
	f := newRunsFixture(t, &fakeQueue{stats: &queue.Stats{Queue: queue.DefaultQueue, Pending: 3, Active: 1}})
	st, err := f.svc.QueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.Pending)
	assert.Equal(t, 1, st.Active)

	noQueue := newRunsFixture(t, nil)
	_, err = noQueue.svc.QueueStats(context.Background())
	status, code := statusOf(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "queue_unavailable", code)
}

func TestPipelineRunListFiles(t *testing.T) {
	f := newRunsFixture(t, &fakeQueue{})
	run := f.createRun(t, nil)

	files, err := f.svc.ListFiles(context.Background(), run.RunID)
	require.NoError(t, err)
	assert.Empty(t, files)

	f.complete(t, run, map[string]string{"taxonomy.csv": "a", "otu_table.csv": "bb"})
	require.NoError(t, os.MkdirAll(filepath.Join(f.resultsDir, run.RunID.String(), "plots"), 0o755))

	files, err = f.svc.ListFiles(context.Background(), run.RunID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "otu_table.csv", files[0].Name)
	assert.EqualValues(t, 2, files[0].Size)
	assert.Equal(t, "/results/download/"+run.RunID.String()+"/otu_table.csv", files[0].DownloadURL)
	assert.Equal(t, "taxonomy.csv", files[1].Name)
}

func TestPipelineRunResolveDownload(t *testing.T) {
	f := newRunsFixture(t, &fakeQueue{})
	run := f.createRun(t, nil)

	_, err := f.svc.ResolveDownload(context.Background(), run.RunID, "otu_table.csv")
	status, code := statusOf(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "run_not_completed", code)

	f.complete(t, run, map[string]string{"otu_table.csv": "x"})
	require.NoError(t, os.WriteFile(filepath.Join(f.resultsDir, "secret.txt"), []byte("s"), 0o644))

	path, err := f.svc.ResolveDownload(context.Background(), run.RunID, "otu_table.csv")
	require.NoError(t, err)
	assert.Equal(t, "otu_table.csv", filepath.Base(path))

	for _, name := range []string{"../secret.txt", "../../etc/passwd", "..", ""} {
		_, err = f.svc.ResolveDownload(context.Background(), run.RunID, name)
		status, code = statusOf(t, err)
		assert.Equal(t, http.StatusBadRequest, status, name)
		assert.Equal(t, "invalid_file_path", code, name)
	}

	_, err = f.svc.ResolveDownload(context.Background(), run.RunID, "missing.csv")
	status, code = statusOf(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "file_not_found", code)

	_, err = f.svc.ResolveDownload(context.Background(), uuid.New(), "otu_table.csv")
	status, _ = statusOf(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestContainedPath(t *testing.T) {
	root := t.TempDir()
	p, ok := ContainedPath(root, "a/b.csv")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, "a", "b.csv"), p)

	_, ok = ContainedPath(root, "a/../../b.csv")
	assert.False(t, ok)
	_, ok = ContainedPath(root, ".")
	assert.False(t, ok)
	_, ok = ContainedPath(root, "..evil.csv")
	assert.True(t, ok)
}
