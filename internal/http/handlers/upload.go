package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/microbrsoil-backend/internal/domain/pipeline"
	"github.com/yungbote/microbrsoil-backend/internal/http/response"
	"github.com/yungbote/microbrsoil-backend/internal/services"
)

// uploadFields are the multipart field names accepted for read files, in lookup order.
var uploadFields = []string{"files[]", "files", "fastq", "file"}

type UploadHandler struct {
	upload services.UploadService
	// maxBody caps the request body; zero means no cap.
	maxBody int64
}

func NewUploadHandler(upload services.UploadService, maxBodyBytes int64) *UploadHandler {
	return &UploadHandler{upload: upload, maxBody: maxBodyBytes}
}

// POST /upload/:pipelineType
func (h *UploadHandler) Upload(c *gin.Context) {
	// Reject an unknown type before any of the body is spooled to disk.
	if _, err := pipeline.ParseType(c.Param("pipelineType")); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_pipeline_type", err)
		return
	}
	h.handle(c, c.Param("pipelineType"))
}

// POST /upload/file
func (h *UploadHandler) UploadLegacy(c *gin.Context) {
	h.handle(c, "")
}

func (h *UploadHandler) handle(c *gin.Context, pipelineType string) {
	if h.maxBody > 0 {
		if c.Request.ContentLength > h.maxBody {
			h.tooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			h.tooLarge(c)
		case errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary):
			response.RespondError(c, http.StatusBadRequest, "no_file_uploaded", errors.New("no file uploaded"))
		default:
			response.RespondError(c, http.StatusBadRequest, "invalid_multipart", err)
		}
		return
	}
	if pipelineType == "" {
		pipelineType = firstValue(form, "pipelineType")
	}
	if pipelineType == "" {
		pipelineType = pipeline.TypeIllumina
	}
	out, err := h.upload.Upload(c.Request.Context(), services.UploadInput{
		PipelineType: pipelineType,
		Files:        formFiles(form),
		BarcodesPath: firstValue(form, "barcodesPath"),
	})
	if err != nil {
		response.RespondAPIError(c, err, "upload_failed")
		return
	}
	response.RespondOK(c, out)
}

func (h *UploadHandler) tooLarge(c *gin.Context) {
	response.RespondError(c, http.StatusRequestEntityTooLarge, "payload_too_large",
		fmt.Errorf("upload exceeds %d bytes", h.maxBody))
}

func formFiles(form *multipart.Form) []*multipart.FileHeader {
	var out []*multipart.FileHeader
	for _, field := range uploadFields {
		out = append(out, form.File[field]...)
	}
	return out
}

func firstValue(form *multipart.Form, key string) string {
	if vals := form.Value[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}
