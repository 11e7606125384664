package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"policychat/internal/analytics"
	"policychat/internal/app"
	"policychat/internal/memory"
	"policychat/internal/model"
	"policychat/internal/pkg/logger"
	"policychat/internal/repository"
	"policychat/internal/transport/http/response"
)

type ChatHandler struct {
	answerService *app.AnswerService
	memory        *memory.Store
	queryRepo     *repository.SearchQueryRepository
	sink          *analytics.Sink
}

type AskRequest struct {
	Question  string `json:"question" binding:"required"`
	SessionID string `json:"session_id" binding:"max=100"`
}

func NewChatHandler(
	answerService *app.AnswerService,
	mem *memory.Store,
	queryRepo *repository.SearchQueryRepository,
	sink *analytics.Sink,
) *ChatHandler {
	return &ChatHandler{
		answerService: answerService,
		memory:        mem,
		queryRepo:     queryRepo,
		sink:          sink,
	}
}

func (h *ChatHandler) Ask(c *gin.Context) {
	tenantID, ok := getTenantIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.answerService.Answer(c.Request.Context(), app.AnswerInput{
		TenantID:  tenantID,
		Question:  req.Question,
		SessionID: req.SessionID,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidQuery), errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "answer failed")
		}
		return
	}

	h.recordTurn(c, tenantID, req.SessionID, req.Question, result.SourceCount)

	response.OK(c, result)
}

// ClearSession drops the session's conversational memory.
func (h *ChatHandler) ClearSession(c *gin.Context) {
	if _, ok := getTenantIDFromContext(c); !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	sessionID := c.Param("id")
	if sessionID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
		return
	}

	if h.memory != nil {
		h.memory.Clear(sessionID)
	}
	response.OK(c, gin.H{"cleared_session_id": sessionID})
}

func (h *ChatHandler) MemoryStats(c *gin.Context) {
	if _, ok := getTenantIDFromContext(c); !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	if h.memory == nil {
		response.OK(c, gin.H{"enabled": false})
		return
	}
	response.OK(c, gin.H{
		"enabled": true,
		"stats":   h.memory.Stats(),
	})
}

func (h *ChatHandler) recordTurn(c *gin.Context, tenantID, sessionID, question string, resultsCount int) {
	if h.queryRepo != nil {
		record := &model.SearchQuery{
			TenantID:     tenantID,
			QueryText:    question,
			ResultsCount: resultsCount,
			SessionID:    sessionID,
		}
		if err := h.queryRepo.Create(record); err != nil {
			logger.For("chat").Warnf("record chat turn failed: %v", err)
		}
	}
	h.sink.Record(c.Request.Context(), analytics.Event{
		Kind:         "chat",
		TenantID:     tenantID,
		SessionID:    sessionID,
		Query:        question,
		ResultsCount: resultsCount,
	})
}
