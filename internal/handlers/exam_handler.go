package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExamHandler struct {
	BaseHandler
	examService   services.ExamService
	resultService services.ResultService
}

func NewExamHandler(examService services.ExamService, resultService services.ResultService, logger *slog.Logger) *ExamHandler {
	return &ExamHandler{
		BaseHandler:   NewBaseHandler(logger),
		examService:   examService,
		resultService: resultService,
	}
}

// CreateExam schedules a new exam over an existing paper
// @Router /exams [post]
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req services.CreateExamRequest
	if !bindJSON(c, &req) {
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Exam created", "exam_id", exam.ID, "start_time", exam.StartTime, "end_time", exam.EndTime)
	c.JSON(http.StatusCreated, exam)
}

// GetExam
// @Router /exams/{id} [get]
func (h *ExamHandler) GetExam(c *gin.Context) {
	examID := parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	exam, err := h.examService.Get(c.Request.Context(), examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// ConcludeExam queues the ranking pipeline for a closed exam
// @Router /exams/{id}/conclude [post]
func (h *ExamHandler) ConcludeExam(c *gin.Context) {
	examID := parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	if err := h.examService.RequestConclusion(c.Request.Context(), examID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Conclusion requested", "exam_id", examID)
	h.RespondWithSuccess(c, http.StatusAccepted, "Conclusion queued", gin.H{"exam_id": examID})
}

// ListResults pages through the ranked results
// @Router /exams/{id}/results [get]
func (h *ExamHandler) ListResults(c *gin.Context) {
	examID := parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	page := parseIntQuery(c, "page", 1)
	size := parseIntQuery(c, "size", 50)
	if page < 1 {
		page = 1
	}

	results, err := h.resultService.List(c.Request.Context(), examID, repositories.ResultFilters{
		Limit:  size,
		Offset: (page - 1) * size,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

// ExportResults streams the ranked results as an xlsx workbook
// @Router /exams/{id}/results/export [get]
func (h *ExamHandler) ExportResults(c *gin.Context) {
	examID := parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	// Headers are only committed by the first write, so a failure before
	// the workbook is written still gets a JSON error.
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="exam-%d-results.xlsx"`, examID))

	if err := h.resultService.ExportXLSX(c.Request.Context(), examID, c.Writer); err != nil {
		if c.Writer.Written() {
			h.LogError(c, err, "Export aborted mid-stream", "exam_id", examID)
			return
		}
		c.Header("Content-Type", "")
		c.Header("Content-Disposition", "")
		h.handleServiceError(c, err)
	}
}
