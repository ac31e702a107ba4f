package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	soilrepo "github.com/yungbote/microbrsoil-backend/internal/data/repos/soil"
	"github.com/yungbote/microbrsoil-backend/internal/domain/soil"
	"github.com/yungbote/microbrsoil-backend/internal/http/response"
	"github.com/yungbote/microbrsoil-backend/internal/services"
)

type SoilHandler struct {
	catalog services.SoilCatalogService
}

func NewSoilHandler(catalog services.SoilCatalogService) *SoilHandler {
	return &SoilHandler{catalog: catalog}
}

// GET /table/soil
func (h *SoilHandler) List(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_query", err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_query", err)
		return
	}
	out, err := h.catalog.List(c.Request.Context(), soilrepo.ListParams{
		Page:     page,
		Limit:    limit,
		Search:   c.Query("search"),
		Material: c.Query("material"),
		Location: c.Query("location"),
	})
	if err != nil {
		response.RespondAPIError(c, err, "list_soils_failed")
		return
	}
	response.RespondOK(c, gin.H{"success": true, "data": out.Data, "pagination": out.Pagination})
}

// GET /table/soil/filters
func (h *SoilHandler) Filters(c *gin.Context) {
	f, err := h.catalog.Filters(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err, "filters_failed")
		return
	}
	response.RespondOK(c, gin.H{"success": true, "filters": f})
}

// GET /table/soil/:id
func (h *SoilHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_soil_id", err)
		return
	}
	d, err := h.catalog.Detail(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err, "soil_detail_failed")
		return
	}
	response.RespondOK(c, gin.H{"success": true, "data": d})
}

// GET /taxon_search/api/getLists
func (h *SoilHandler) TaxonLists(c *gin.Context) {
	lists, err := h.catalog.TaxonLists(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err, "taxon_lists_failed")
		return
	}
	response.RespondOK(c, lists)
}

// GET /taxon_search/api/:parameterType/:selectedParameter/result
func (h *SoilHandler) TaxonResult(c *gin.Context) {
	rows, err := h.catalog.SamplesByTaxon(c.Request.Context(), c.Param("parameterType"), c.Param("selectedParameter"))
	if err != nil {
		response.RespondAPIError(c, err, "taxon_search_failed")
		return
	}
	response.RespondOK(c, gin.H{"sampleList": rows})
}

// GET /sequence_search/api/result?tselect_sh=
func (h *SoilHandler) ExactSequence(c *gin.Context) {
	seq, ok := sequenceQuery(c)
	if !ok {
		return
	}
	rows, err := h.catalog.ExactSequence(c.Request.Context(), seq)
	if err != nil {
		response.RespondAPIError(c, err, "sequence_search_failed")
		return
	}
	response.RespondOK(c, gin.H{"foundSequence": rows})
}

// GET /sequence_search/api/approximateResults?tselect_sh=
func (h *SoilHandler) ApproximateSequence(c *gin.Context) {
	seq, ok := sequenceQuery(c)
	if !ok {
		return
	}
	rows, err := h.catalog.SimilarSequences(c.Request.Context(), seq)
	if err != nil {
		response.RespondAPIError(c, err, "sequence_search_failed")
		return
	}
	response.RespondOK(c, gin.H{"foundSequences": rows})
}

// GET /geosearch?minLat&maxLat&minLon&maxLon
func (h *SoilHandler) GeoSearch(c *gin.Context) {
	var box soil.BoundingBox
	for _, p := range []struct {
		key string
		dst *float64
	}{
		{"minLat", &box.MinLat},
		{"maxLat", &box.MaxLat},
		{"minLon", &box.MinLon},
		{"maxLon", &box.MaxLon},
	} {
		raw := strings.TrimSpace(c.Query(p.key))
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_bounding_box", fmt.Errorf("%s must be a number, got %q", p.key, raw))
			return
		}
		*p.dst = v
	}
	rows, err := h.catalog.WithinBox(c.Request.Context(), box)
	if err != nil {
		response.RespondAPIError(c, err, "geosearch_failed")
		return
	}
	response.RespondOK(c, gin.H{"success": true, "data": rows, "total": len(rows)})
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return n, nil
}

func sequenceQuery(c *gin.Context) (string, bool) {
	seq := strings.TrimSpace(c.Query("tselect_sh"))
	if seq == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_parameter", fmt.Errorf("tselect_sh is required"))
		return "", false
	}
	return seq, true
}
