package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-service/internal/services"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
}

func NewAttemptHandler(attemptService services.AttemptService, logger *slog.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
	}
}

type submitAnswerBody struct {
	QuestionID    uint     `json:"question_id"`
	OptionsChosen []string `json:"options_chosen"`
}

// Enroll registers the caller for an exam
// @Router /exams/{id}/enroll [post]
func (h *AttemptHandler) Enroll(c *gin.Context) {
	examID := parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	attempt, err := h.attemptService.Enroll(c.Request.Context(), examID, userID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Enrolled in exam", "exam_id", examID, "attempt_id", attempt.ID)
	c.JSON(http.StatusCreated, attempt)
}

// StartAttempt starts a competitive attempt when exam_id is given and a
// practice attempt otherwise
// @Router /attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	var req services.StartAttemptRequest
	if !bindJSON(c, &req) {
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), &req, userID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// SubmitAnswer scores one answer for the attempt
// @Router /attempts/{id}/answers [post]
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	attemptID := parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	var body submitAnswerBody
	if !bindJSON(c, &body) {
		return
	}

	submission, err := h.attemptService.Submit(c.Request.Context(), &services.SubmitAnswerRequest{
		AttemptID:     attemptID,
		QuestionID:    body.QuestionID,
		OptionsChosen: body.OptionsChosen,
	}, userID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, submission)
}

// EndAttempt
// @Router /attempts/{id}/end [post]
func (h *AttemptHandler) EndAttempt(c *gin.Context) {
	attemptID := parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	attempt, err := h.attemptService.End(c.Request.Context(), attemptID, userID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetAttempt
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attemptID := parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	attempt, err := h.attemptService.Get(c.Request.Context(), attemptID, userID(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// NextQuestion returns the question after ?current=<code> in paper order
// @Router /papers/{id}/next-question [get]
func (h *AttemptHandler) NextQuestion(c *gin.Context) {
	paperID := parseIDParam(c, "id")
	if paperID == 0 {
		return
	}

	resp, err := h.attemptService.NextQuestion(c.Request.Context(), &services.NextQuestionRequest{
		PaperID:     paperID,
		CurrentCode: c.Query("current"),
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
