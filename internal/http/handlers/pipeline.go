package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/microbrsoil-backend/internal/http/response"
	"github.com/yungbote/microbrsoil-backend/internal/services"
)

type PipelineHandler struct {
	runs services.PipelineRunService
}

func NewPipelineHandler(runs services.PipelineRunService) *PipelineHandler {
	return &PipelineHandler{runs: runs}
}

func parseRunID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("runId"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return uuid.Nil, false
	}
	return id, true
}

// GET /pipeline/status/:runId
func (h *PipelineHandler) Status(c *gin.Context) {
	runID, ok := parseRunID(c)
	if !ok {
		return
	}
	run, err := h.runs.Get(c.Request.Context(), runID)
	if err != nil {
		response.RespondAPIError(c, err, "status_failed")
		return
	}
	response.RespondOK(c, gin.H{"success": true, "run": run})
}

// GET /pipeline/results/:runId
func (h *PipelineHandler) Results(c *gin.Context) {
	runID, ok := parseRunID(c)
	if !ok {
		return
	}
	out, err := h.runs.Results(c.Request.Context(), runID)
	if err != nil {
		response.RespondAPIError(c, err, "results_failed")
		return
	}
	if !out.Completed() {
		response.RespondOK(c, gin.H{
			"success": false,
			"error":   "Pipeline not completed yet",
			"status":  out.Run.Status,
		})
		return
	}
	response.RespondOK(c, gin.H{"success": true, "run": out.Run, "results": out.Result})
}

// GET /pipeline/runs
func (h *PipelineHandler) ListMine(c *gin.Context) {
	runs, err := h.runs.ListMine(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err, "list_runs_failed")
		return
	}
	response.RespondOK(c, gin.H{"success": true, "runs": runs})
}

// GET /pipeline/queue
func (h *PipelineHandler) QueueStats(c *gin.Context) {
	st, err := h.runs.QueueStats(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err, "queue_stats_failed")
		return
	}
	response.RespondOK(c, gin.H{"success": true, "stats": st})
}

// GET /results/files/:runId
func (h *PipelineHandler) Files(c *gin.Context) {
	runID, ok := parseRunID(c)
	if !ok {
		return
	}
	files, err := h.runs.ListFiles(c.Request.Context(), runID)
	if err != nil {
		response.RespondAPIError(c, err, "list_files_failed")
		return
	}
	response.RespondOK(c, gin.H{"files": files})
}

// GET /results/download/:runId/:filename
func (h *PipelineHandler) Download(c *gin.Context) {
	runID, ok := parseRunID(c)
	if !ok {
		return
	}
	path, err := h.runs.ResolveDownload(c.Request.Context(), runID, c.Param("filename"))
	if err != nil {
		response.RespondAPIError(c, err, "download_failed")
		return
	}
	name := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		c.Header("Content-Type", "text/csv; charset=utf-8")
	}
	c.FileAttachment(path, name)
}
