package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
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
	"github.com/yungbote/microbrsoil-backend/internal/platform/apierr"
	"github.com/yungbote/microbrsoil-backend/internal/platform/ctxutil"
)

type fakeQueue struct {
	payloads []queue.Payload
	err      error
	stats    *queue.Stats
}

func (q *fakeQueue) Enqueue(_ context.Context, p queue.Payload) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.payloads = append(q.payloads, p)
	return p.RunID.String(), nil
}

func (q *fakeQueue) Stats(context.Context) (*queue.Stats, error) {
	if q.stats == nil {
		return &queue.Stats{Queue: queue.DefaultQueue}, nil
	}
	return q.stats, nil
}

// multipartFiles builds file headers the same way gin does for a real request.
func multipartFiles(t *testing.T, files map[string]string) []*multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, body := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["files"]
}

func statusOf(t *testing.T, err error) (int, string) {
	t.Helper()
	require.Error(t, err)
	ae := apierr.As(err, "internal")
	return ae.Status, ae.Code
}

func newUploadFixture(t *testing.T, q *fakeQueue, cfg UploadConfig) (UploadService, pipelinerepo.RunRepo) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	runs := pipelinerepo.NewRunRepo(db, log)
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	return NewUploadService(log, runs, q, cfg), runs
}

func TestUploadQueuesRun(t *testing.T) {
	q := &fakeQueue{}
	dir := t.TempDir()
	svc, runs := newUploadFixture(t, q, UploadConfig{Dir: dir})

	userID := uuid.New()
	ctx := ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: userID})
	out, err := svc.Upload(ctx, UploadInput{
		PipelineType: "16S",
		Files:        multipartFiles(t, map[string]string{"R1.fastq": "@r1\nACGT\n+\nIIII\n"}),
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, pipeline.TypeIllumina, out.PipelineType)
	assert.Equal(t, out.RunID.String(), out.JobID)
	require.Len(t, out.Files, 1)
	assert.Equal(t, filepath.Join(dir, out.RunID.String(), "R1.fastq"), out.Files[0])

	body, err := os.ReadFile(out.Files[0])
	require.NoError(t, err)
	assert.Equal(t, "@r1\nACGT\n+\nIIII\n", string(body))

	run, err := runs.GetByID(testutil.Ctx(), out.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, pipeline.StatusQueued, run.Status)
	assert.Equal(t, out.JobID, run.JobID)
	require.NotNil(t, run.UserID)
	assert.Equal(t, userID, *run.UserID)
	var stored []string
	require.NoError(t, json.Unmarshal(run.InputFiles, &stored))
	assert.Equal(t, out.Files, stored)

	require.Len(t, q.payloads, 1)
	p := q.payloads[0]
	assert.Equal(t, out.RunID, p.RunID)
	assert.Equal(t, out.Files[0], p.FastqPath)
	assert.Equal(t, userID.String(), p.Meta.UploadedBy)
}

func TestUploadAnonymous(t *testing.T) {
	q := &fakeQueue{}
	svc, runs := newUploadFixture(t, q, UploadConfig{})

	out, err := svc.Upload(context.Background(), UploadInput{
		PipelineType: "its",
		Files:        multipartFiles(t, map[string]string{"reads.fq": "x"}),
		BarcodesPath: " /data/bc.fa ",
	})
	require.NoError(t, err)
	run, err := runs.GetByID(testutil.Ctx(), out.RunID)
	require.NoError(t, err)
	assert.Nil(t, run.UserID)
	require.Len(t, q.payloads, 1)
	assert.Equal(t, "anonymous", q.payloads[0].Meta.UploadedBy)
	assert.Equal(t, "/data/bc.fa", q.payloads[0].Meta.BarcodesPath)
}

func TestUploadValidation(t *testing.T) {
	q := &fakeQueue{}
	svc, _ := newUploadFixture(t, q, UploadConfig{MaxFiles: 2, MaxFileBytes: 8})

	cases := []struct {
		name   string
		in     UploadInput
		status int
		code   string
	}{
		{"unknown type", UploadInput{PipelineType: "nanopore", Files: multipartFiles(t, map[string]string{"a.fastq": "x"})}, http.StatusBadRequest, "invalid_pipeline_type"},
		{"no files", UploadInput{PipelineType: "illumina"}, http.StatusBadRequest, "no_file_uploaded"},
		{"too many", UploadInput{PipelineType: "illumina", Files: multipartFiles(t, map[string]string{"a.fastq": "x", "b.fastq": "x", "c.fastq": "x"})}, http.StatusBadRequest, "too_many_files"},
		{"too large", UploadInput{PipelineType: "illumina", Files: multipartFiles(t, map[string]string{"a.fastq": "0123456789"})}, http.StatusRequestEntityTooLarge, "file_too_large"},
		{"bad extension", UploadInput{PipelineType: "illumina", Files: multipartFiles(t, map[string]string{"a.exe": "x"})}, http.StatusBadRequest, "invalid_file_type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), tc.in)
			status, code := statusOf(t, err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, code)
		})
	}
	assert.Empty(t, q.payloads)
}

func TestUploadEnqueueFailureMarksRunFailed(t *testing.T) {
	q := &fakeQueue{err: errors.New("redis down")}
	db := testutil.DB(t)
	log := testutil.Logger(t)
	runs := pipelinerepo.NewRunRepo(db, log)
	svc := NewUploadService(log, runs, q, UploadConfig{Dir: t.TempDir()})

	_, err := svc.Upload(context.Background(), UploadInput{
		PipelineType: "illumina",
		Files:        multipartFiles(t, map[string]string{"a.fastq.gz": "x"}),
	})
	status, code := statusOf(t, err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "enqueue_failed", code)

	var failed []*pipeline.Run
	require.NoError(t, db.Find(&failed).Error)
	require.Len(t, failed, 1)
	assert.Equal(t, pipeline.StatusFailed, failed[0].Status)
	assert.Equal(t, pipeline.ErrorKindDispatch, failed[0].ErrorKind)
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"R1.fastq":               "R1.fastq",
		"../../etc/passwd.fastq": "passwd.fastq",
		`C:\data\my reads.fq`:    "my_reads.fq",
		".hidden.fastq":          "hidden.fastq",
		"":                       "upload",
		"amostra_ç.fastq":        "amostra__.fastq",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFileName(in), in)
	}
}

func TestUniqueName(t *testing.T) {
	used := map[string]int{}
	assert.Equal(t, "a.fastq", uniqueName("a.fastq", used))
	assert.Equal(t, "a_1.fastq", uniqueName("a.fastq", used))
	assert.Equal(t, "a_2.fastq", uniqueName("a.fastq", used))
}

func TestAllowedUploadName(t *testing.T) {
	assert.True(t, AllowedUploadName("S1_R1.FASTQ.GZ"))
	assert.True(t, AllowedUploadName("barcodes.fasta"))
	assert.False(t, AllowedUploadName("script.R"))
}

func TestUploadConfigMaxRequestBytes(t *testing.T) {
	assert.Equal(t, int64(2*16+1<<20), UploadConfig{MaxFiles: 2, MaxFileBytes: 16}.MaxRequestBytes())
	assert.Equal(t, int64(DefaultUploadMaxFiles)*DefaultUploadMaxFileBytes+1<<20, UploadConfig{}.MaxRequestBytes())
}
