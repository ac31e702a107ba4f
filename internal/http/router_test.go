package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelinerepo "github.com/yungbote/microbrsoil-backend/internal/data/repos/pipeline"
	soilrepo "github.com/yungbote/microbrsoil-backend/internal/data/repos/soil"
	"github.com/yungbote/microbrsoil-backend/internal/data/repos/testutil"
	userrepo "github.com/yungbote/microbrsoil-backend/internal/data/repos/user"
	"github.com/yungbote/microbrsoil-backend/internal/domain/pipeline"
	httpH "github.com/yungbote/microbrsoil-backend/internal/http/handlers"
	httpMW "github.com/yungbote/microbrsoil-backend/internal/http/middleware"
	"github.com/yungbote/microbrsoil-backend/internal/jobs/pipeline/pipeline_run"
	"github.com/yungbote/microbrsoil-backend/internal/jobs/queue"
	"github.com/yungbote/microbrsoil-backend/internal/jobs/runtime"
	"github.com/yungbote/microbrsoil-backend/internal/jobs/worker"
	"github.com/yungbote/microbrsoil-backend/internal/observability"
	"github.com/yungbote/microbrsoil-backend/internal/pipeline/invoker"
	"github.com/yungbote/microbrsoil-backend/internal/pipeline/results"
	"github.com/yungbote/microbrsoil-backend/internal/services"
)

type capturingQueue struct {
	payloads []queue.Payload
}

func (q *capturingQueue) Enqueue(_ context.Context, p queue.Payload) (string, error) {
	q.payloads = append(q.payloads, p)
	return p.RunID.String(), nil
}

func (q *capturingQueue) Stats(context.Context) (*queue.Stats, error) {
	return &queue.Stats{Queue: queue.DefaultQueue, Pending: len(q.payloads)}, nil
}

// csvInvoker stands in for Rscript by writing fixed result tables.
type csvInvoker struct {
	files map[string]string
	err   error
}

func (f *csvInvoker) Invoke(_ context.Context, req invoker.Request) (*invoker.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, err
	}
	for name, body := range f.files {
		if err := os.WriteFile(filepath.Join(req.OutputDir, name), []byte(body), 0o644); err != nil {
			return nil, err
		}
	}
	return &invoker.Result{Success: true, OutputDir: req.OutputDir}, nil
}

type env struct {
	router  *gin.Engine
	queue   *capturingQueue
	worker  *worker.Worker
	runs    pipelinerepo.RunRepo
	metrics *observability.Metrics
	invoker *csvInvoker
}

func newEnv(t *testing.T) *env {
	return newEnvWithUpload(t, services.UploadConfig{})
}

func newEnvWithUpload(t *testing.T, uploadCfg services.UploadConfig) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)

	runs := pipelinerepo.NewRunRepo(db, log)
	resultRepo := pipelinerepo.NewResultRepo(db, log)
	soils := soilrepo.NewSoilRepo(db, log)
	samples := soilrepo.NewSampleRepo(db, log)
	users := userrepo.NewUserRepo(db, log)

	q := &capturingQueue{}
	resultsDir := t.TempDir()
	uploadCfg.Dir = t.TempDir()
	authSvc := services.NewAuthService(log, users, "router-test-secret", time.Hour)
	metrics := observability.NewMetrics()

	router := NewRouter(RouterConfig{
		Log:             log,
		Metrics:         metrics,
		AuthHandler:     httpH.NewAuthHandler(authSvc, false),
		AuthMiddleware:  httpMW.NewAuthMiddleware(log, authSvc),
		UploadHandler:   httpH.NewUploadHandler(services.NewUploadService(log, runs, q, uploadCfg), uploadCfg.MaxRequestBytes()),
		PipelineHandler: httpH.NewPipelineHandler(services.NewPipelineRunService(log, runs, resultRepo, q, resultsDir)),
		SoilHandler:     httpH.NewSoilHandler(services.NewSoilCatalogService(log, soils, samples, nil, time.Minute)),
		HealthHandler: httpH.NewHealthHandler(map[string]httpH.Pinger{
			"db": httpH.PingFunc(func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			}),
		}),
	})

	catalog, err := invoker.LoadCatalog("")
	require.NoError(t, err)
	inv := &csvInvoker{files: map[string]string{
		results.FileAlphaDiversity: ",observed,shannon,simpson,chao1,goods\ntest1,10,2.1,0.8,12,0.99\n",
		results.FileOTUTable:       ",test1,test2\nACGTACGTAA,5,7\n",
		results.FileTaxonomy:       ",Kingdom,Phylum,Class,Order,Family,Genus,Species\nACGTACGTAA,Bacteria,Firmicutes,Bacilli,Bacillales,Bacillaceae,Bacillus,subtilis\n",
		results.FileMetadata:       "sample,lat_lon,geo_loc_name\ntest1,38.98 N 77.11 W,USA: Maryland\n",
	}}
	proc := results.NewProcessor(db, log, resultRepo, soils, samples)
	reg := runtime.NewRegistry()
	require.NoError(t, reg.Register(pipeline_run.New(log, catalog, inv, proc, resultsDir)))

	return &env{
		router:  router,
		queue:   q,
		worker:  worker.NewWorker(log, runs, reg, worker.Config{}).WithMetrics(metrics),
		runs:    runs,
		metrics: metrics,
		invoker: inv,
	}
}

func (e *env) do(t *testing.T, req *nethttp.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) getJSON(t *testing.T, path string, dst any) int {
	t.Helper()
	rec := e.do(t, httptest.NewRequest(nethttp.MethodGet, path, nil))
	if dst != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
	}
	return rec.Code
}

func uploadRequest(t *testing.T, path, field string, files map[string]string, values map[string]string) *nethttp.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range values {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, body := range files {
		part, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(nethttp.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// deliver runs every captured payload through the worker like asynq would.
func (e *env) deliver(t *testing.T) {
	t.Helper()
	for _, p := range e.queue.payloads {
		task, err := queue.NewPipelineTask(p)
		require.NoError(t, err)
		require.NoError(t, e.worker.ProcessTask(context.Background(), task))
	}
	e.queue.payloads = nil
}

func TestUploadToResultsFlow(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, uploadRequest(t, "/upload/illumina", "files[]", map[string]string{
		"S1_R1.fastq": "@r\nACGT\n+\nIIII\n",
		"S1_R2.fastq": "@r\nTGCA\n+\nIIII\n",
	}, nil))
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	var up services.UploadOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	assert.True(t, up.Success)
	assert.Len(t, up.Files, 2)
	require.Len(t, e.queue.payloads, 1)
	assert.Len(t, e.queue.payloads[0].Meta.AllFiles, 2)
	runID := up.RunID.String()

	var status struct {
		Success bool          `json:"success"`
		Run     *pipeline.Run `json:"run"`
	}
	require.Equal(t, nethttp.StatusOK, e.getJSON(t, "/pipeline/status/"+runID, &status))
	assert.Equal(t, pipeline.StatusQueued, status.Run.Status)

	var pending map[string]any
	require.Equal(t, nethttp.StatusOK, e.getJSON(t, "/pipeline/results/"+runID, &pending))
	assert.Equal(t, false, pending["success"])
	assert.Equal(t, "Pipeline not completed yet", pending["error"])
	assert.Equal(t, pipeline.StatusQueued, pending["status"])

	var qs struct {
		Stats map[string]any `json:"stats"`
	}
	require.Equal(t, nethttp.StatusOK, e.getJSON(t, "/pipeline/queue", &qs))
	assert.EqualValues(t, 1, qs.Stats["waiting"])

	rec = e.do(t, httptest.NewRequest(nethttp.MethodGet, "/results/download/"+runID+"/otu_table.csv", nil))
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)

	e.deliver(t)

	require.Equal(t, nethttp.StatusOK, e.getJSON(t, "/pipeline/status/"+runID, &status))
	assert.Equal(t, pipeline.StatusCompleted, status.Run.Status)
	assert.Equal(t, 1, status.Run.Attempts)
	assert.NotEmpty(t, status.Run.Logs)

	var done struct {
		Success bool             `json:"success"`
		Results *pipeline.Result `json:"results"`
	}
	require.Equal(t, nethttp.StatusOK, e.getJSON(t, "/pipeline/results/"+runID, &done))
	assert.True(t, done.Success)
	require.NotNil(t, done.Results)
	assert.NotNil(t, done.Results.SoilID)
	assert.NotNil(t, done.Results.MetadataFile)

	var files struct {
		Files []services.ResultFile `json:"files"`
	}
	require.Equal(t, nethttp.StatusOK, e.getJSON(t, "/results/files/"+runID, &files))
	assert.Len(t, files.Files, 4)

	rec = e.do(t, httptest.NewRequest(nethttp.MethodGet, "/results/download/"+runID+"/otu_table.csv", nil))
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Body.String(), "ACGTACGTAA")

	rec = e.do(t, httptest.NewRequest(nethttp.MethodGet, "/results/download/"+runID+"/..", nil))
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
	for _, name := range []string{"..%2F..%2Fetc%2Fpasswd", "..%2Fx.csv"} {
		rec = e.do(t, httptest.NewRequest(nethttp.MethodGet, "/results/download/"+runID+"/"+name, nil))
		assert.Equal(t, nethttp.StatusBadRequest, rec.Code, name)
		assert.Contains(t, rec.Body.String(), "invalid_file_path", name)
	}
	rec = e.do(t, httptest.NewRequest(nethttp.MethodGet, "/results/download/"+runID+"/nope.csv", nil))
	assert.Equal(t, nethttp.StatusNotFound, rec.Code)

	var taxa struct {
		SampleList []map[string]any `json:"sampleList"`
	}
	require.Equal(t, nethttp.StatusOK, e.getJSON(t, "/taxon_search/api/genus/Bacillus/result", &taxa))
	require.Len(t, taxa.SampleList, 1)
	assert.Equal(t, "ACGTACGTAA", taxa.SampleList[0]["sequence"])

	var seq struct {
		FoundSequences []map[string]any `json:"foundSequences"`
	}
	require.Equal(t, nethttp.StatusOK, e.getJSON(t, "/sequence_search/api/approximateResults?tselect_sh=cgtac", &seq))
	assert.Len(t, seq.FoundSequences, 1)

	var geo struct {
		Total int `json:"total"`
	}
	require.Equal(t, nethttp.StatusOK, e.getJSON(t, "/geosearch?minLat=38&maxLat=39&minLon=-78&maxLon=-77", &geo))
	assert.Equal(t, 1, geo.Total)

	rec = e.do(t, httptest.NewRequest(nethttp.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `microbrsoil_pipeline_tasks_total{task_type="pipeline:run",outcome="ok"} 1`)
}

func TestLegacyUploadDefaultsToIllumina(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, uploadRequest(t, "/upload/file", "fastq", map[string]string{"reads.fq": "x"}, nil))
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, e.queue.payloads, 1)
	assert.Equal(t, pipeline.TypeIllumina, e.queue.payloads[0].PipelineType)

	rec = e.do(t, uploadRequest(t, "/upload/file", "file", map[string]string{"reads.fq": "x"}, map[string]string{"pipelineType": "its", "barcodesPath": "/bc.fa"}))
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, e.queue.payloads, 2)
	assert.Equal(t, pipeline.TypeITS, e.queue.payloads[1].PipelineType)
	assert.Equal(t, "/bc.fa", e.queue.payloads[1].Meta.BarcodesPath)
}

func TestUploadErrors(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, uploadRequest(t, "/upload/nanopore", "files", map[string]string{"a.fastq": "x"}, nil))
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_pipeline_type")

	rec = e.do(t, uploadRequest(t, "/upload/illumina", "files", nil, map[string]string{"note": "empty"}))
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no_file_uploaded")

	rec = e.do(t, httptest.NewRequest(nethttp.MethodPost, "/upload/illumina", nil))
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.Empty(t, e.queue.payloads)
}

func TestUploadRejectsOversizedBody(t *testing.T) {
	e := newEnvWithUpload(t, services.UploadConfig{MaxFiles: 1, MaxFileBytes: 16})

	big := string(bytes.Repeat([]byte("A"), 2<<20))
	rec := e.do(t, uploadRequest(t, "/upload/illumina", "files", map[string]string{"a.fastq": big}, nil))
	assert.Equal(t, nethttp.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "payload_too_large")

	rec = e.do(t, uploadRequest(t, "/upload/nanopore", "files", map[string]string{"a.fastq": big}, nil))
	assert.Equal(t, nethttp.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_pipeline_type")
	assert.Empty(t, e.queue.payloads)
}

func TestFailedRunReportsError(t *testing.T) {
	e := newEnv(t)
	e.invoker.err = errors.New("Rscript exited with status 1")

	rec := e.do(t, uploadRequest(t, "/upload/illumina", "files", map[string]string{"a.fastq": "x"}, nil))
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	var up services.UploadOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))

	require.Len(t, e.queue.payloads, 1)
	task, err := queue.NewPipelineTask(e.queue.payloads[0])
	require.NoError(t, err)
	assert.Error(t, e.worker.ProcessTask(context.Background(), task))

	var status struct {
		Run *pipeline.Run `json:"run"`
	}
	require.Equal(t, nethttp.StatusOK, e.getJSON(t, "/pipeline/status/"+up.RunID.String(), &status))
	require.NotNil(t, status.Run)
	assert.Equal(t, pipeline.StatusFailed, status.Run.Status)
	require.NotNil(t, status.Run.ErrorMessage)
	assert.Contains(t, *status.Run.ErrorMessage, "Rscript exited")

	var res map[string]any
	require.Equal(t, nethttp.StatusOK, e.getJSON(t, "/pipeline/results/"+up.RunID.String(), &res))
	assert.Equal(t, false, res["success"])
}

func TestStatusErrors(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, nethttp.StatusBadRequest, e.getJSON(t, "/pipeline/status/not-a-uuid", nil))
	assert.Equal(t, nethttp.StatusNotFound, e.getJSON(t, "/pipeline/status/"+uuid.NewString(), nil))
	assert.Equal(t, nethttp.StatusNotFound, e.getJSON(t, "/pipeline/results/"+uuid.NewString(), nil))
	assert.Equal(t, nethttp.StatusNotFound, e.getJSON(t, "/results/files/"+uuid.NewString(), nil))
	assert.Equal(t, nethttp.StatusUnauthorized, e.getJSON(t, "/pipeline/runs", nil))
}

func TestAuthCookieScopesRuns(t *testing.T) {
	e := newEnv(t)

	body := `{"email":"lab@example.org","password":"s3cretpass","confirmPassword":"s3cretpass"}`
	req := httptest.NewRequest(nethttp.MethodPost, "/auth/register", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, nethttp.StatusCreated, e.do(t, req).Code)

	req = httptest.NewRequest(nethttp.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"lab@example.org","password":"s3cretpass"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := e.do(t, req)
	require.Equal(t, nethttp.StatusOK, rec.Code, rec.Body.String())
	var cookie *nethttp.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == httpMW.TokenCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	up := uploadRequest(t, "/upload/its", "files", map[string]string{"a.fastq": "x"}, nil)
	up.AddCookie(cookie)
	require.Equal(t, nethttp.StatusOK, e.do(t, up).Code)
	anon := uploadRequest(t, "/upload/its", "files", map[string]string{"b.fastq": "x"}, nil)
	require.Equal(t, nethttp.StatusOK, e.do(t, anon).Code)

	req = httptest.NewRequest(nethttp.MethodGet, "/pipeline/runs", nil)
	req.AddCookie(cookie)
	rec = e.do(t, req)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	var mine struct {
		Runs []*pipeline.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Len(t, mine.Runs, 1)
	assert.NotNil(t, mine.Runs[0].UserID)

	rec = e.do(t, httptest.NewRequest(nethttp.MethodPost, "/auth/logout", nil))
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestSoilEndpointsValidateInput(t *testing.T) {
	e := newEnv(t)

	var page map[string]any
	require.Equal(t, nethttp.StatusOK, e.getJSON(t, "/table/soil", &page))
	assert.Equal(t, true, page["success"])

	assert.Equal(t, nethttp.StatusBadRequest, e.getJSON(t, "/table/soil?page=abc", nil))
	assert.Equal(t, nethttp.StatusBadRequest, e.getJSON(t, "/table/soil?limit=500", nil))
	assert.Equal(t, nethttp.StatusBadRequest, e.getJSON(t, "/table/soil/not-a-uuid", nil))
	assert.Equal(t, nethttp.StatusNotFound, e.getJSON(t, "/table/soil/"+uuid.NewString(), nil))
	assert.Equal(t, nethttp.StatusBadRequest, e.getJSON(t, "/taxon_search/api/family/x/result", nil))
	assert.Equal(t, nethttp.StatusNotFound, e.getJSON(t, "/taxon_search/api/genus/Nothing/result", nil))
	assert.Equal(t, nethttp.StatusBadRequest, e.getJSON(t, "/sequence_search/api/result", nil))
	assert.Equal(t, nethttp.StatusBadRequest, e.getJSON(t, "/geosearch?minLat=1", nil))
	assert.Equal(t, nethttp.StatusBadRequest, e.getJSON(t, "/geosearch?minLat=10&maxLat=-10&minLon=0&maxLon=1", nil))

	var filters struct {
		Success bool           `json:"success"`
		Filters map[string]any `json:"filters"`
	}
	require.Equal(t, nethttp.StatusOK, e.getJSON(t, "/table/soil/filters", &filters))
	assert.True(t, filters.Success)

	var lists map[string]any
	require.Equal(t, nethttp.StatusOK, e.getJSON(t, "/taxon_search/api/getLists", &lists))
	assert.Contains(t, lists, "speciesList")
	assert.Contains(t, lists, "genusList")
}

func TestHealthEndpoints(t *testing.T) {
	e := newEnv(t)

	var live map[string]any
	require.Equal(t, nethttp.StatusOK, e.getJSON(t, "/_health", &live))
	assert.Equal(t, true, live["ok"])
	assert.EqualValues(t, os.Getpid(), live["pid"])

	var ready map[string]any
	require.Equal(t, nethttp.StatusOK, e.getJSON(t, "/healthcheck", &ready))
	assert.Equal(t, map[string]any{"db": "ok"}, ready["checks"])
}
