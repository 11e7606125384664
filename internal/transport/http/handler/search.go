package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"policychat/internal/analytics"
	"policychat/internal/app"
	"policychat/internal/model"
	"policychat/internal/pkg/logger"
	"policychat/internal/repository"
	"policychat/internal/transport/http/response"
)

type SearchHandler struct {
	searchService *app.SearchService
	queryRepo     *repository.SearchQueryRepository
	sink          *analytics.Sink
}

type SearchRequest struct {
	Query         string   `json:"query" binding:"required"`
	Limit         int      `json:"limit"`
	MinSimilarity float64  `json:"min_similarity"`
	DocumentIDs   []string `json:"document_ids"`
}

func NewSearchHandler(
	searchService *app.SearchService,
	queryRepo *repository.SearchQueryRepository,
	sink *analytics.Sink,
) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		queryRepo:     queryRepo,
		sink:          sink,
	}
}

func (h *SearchHandler) Search(c *gin.Context) {
	tenantID, ok := getTenantIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	results, err := h.searchService.Search(
		c.Request.Context(), tenantID, req.Query, req.Limit, req.MinSimilarity, req.DocumentIDs)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidQuery), errors.Is(err, app.ErrQueryTooLong):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "search failed")
		}
		return
	}

	h.recordQuery(c, "search", tenantID, "", req.Query, len(results))

	response.OK(c, gin.H{
		"query":   req.Query,
		"count":   len(results),
		"results": results,
	})
}

// Similar returns segments close to a stored one, e.g. for "related
// passages" UI affordances.
func (h *SearchHandler) Similar(c *gin.Context) {
	tenantID, ok := getTenantIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	minSimilarity := 0.0
	if raw := c.Query("min_similarity"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			minSimilarity = parsed
		}
	}

	results, err := h.searchService.Similar(tenantID, c.Param("id"), limit, minSimilarity)
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "similar search failed")
		}
		return
	}

	response.OK(c, gin.H{
		"segment_id": c.Param("id"),
		"count":      len(results),
		"results":    results,
	})
}

// recordQuery writes the analytics trail. Both sinks are best-effort; a
// failed write never affects the response.
func (h *SearchHandler) recordQuery(c *gin.Context, kind, tenantID, sessionID, query string, resultsCount int) {
	if h.queryRepo != nil {
		record := &model.SearchQuery{
			TenantID:     tenantID,
			QueryText:    query,
			ResultsCount: resultsCount,
			SessionID:    sessionID,
		}
		if err := h.queryRepo.Create(record); err != nil {
			logger.For("search").Warnf("record search query failed: %v", err)
		}
	}
	h.sink.Record(c.Request.Context(), analytics.Event{
		Kind:         kind,
		TenantID:     tenantID,
		SessionID:    sessionID,
		Query:        query,
		ResultsCount: resultsCount,
	})
}
