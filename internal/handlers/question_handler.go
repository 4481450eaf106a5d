package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/services"
)

// QuestionHandler seeds the catalog with questions and papers. Both are
// immutable once stored.
type QuestionHandler struct {
	BaseHandler
	catalogService services.CatalogService
}

func NewQuestionHandler(catalogService services.CatalogService, logger *slog.Logger) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler:    NewBaseHandler(logger),
		catalogService: catalogService,
	}
}

// CreateQuestion stores a question with its answer key
// @Router /questions [post]
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	var question models.Question
	if !bindJSON(c, &question) {
		return
	}
	question.ID = 0

	if err := h.catalogService.CreateQuestion(c.Request.Context(), &question); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Question created", "question_id", question.ID, "code", question.Code)
	c.JSON(http.StatusCreated, question)
}

// CreatePaper stores a paper and its marking rules
// @Router /papers [post]
func (h *QuestionHandler) CreatePaper(c *gin.Context) {
	var paper models.Paper
	if !bindJSON(c, &paper) {
		return
	}
	paper.ID = 0

	if err := h.catalogService.CreatePaper(c.Request.Context(), &paper); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Paper created", "paper_id", paper.ID, "questions", len(paper.Questions))
	c.JSON(http.StatusCreated, paper)
}
