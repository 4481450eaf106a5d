package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
)

// ===== COMMON RESPONSE STRUCTURES =====

type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides request-scoped logging and the shared error mapping.
type BaseHandler struct {
	logger *slog.Logger
}

func NewBaseHandler(logger *slog.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) log(c *gin.Context) *slog.Logger {
	return utils.LoggerFromContext(c, h.logger).With(
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"user_id", userID(c),
	)
}

func (h *BaseHandler) LogRequest(c *gin.Context, message string, fields ...interface{}) {
	h.log(c).Info(message, fields...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, message string, fields ...interface{}) {
	h.log(c).Error(message, append(fields, "error", err)...)
}

// RespondWithSuccess wraps data in the common envelope.
func (h *BaseHandler) RespondWithSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, SuccessResponse{Message: message, Data: data})
}

func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
			Code:    "validation_error",
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrQuestionNotInPaper):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error(), Code: "question_not_in_paper"})
	case errors.Is(err, services.ErrMandatoryUnanswered):
		c.JSON(http.StatusConflict, ErrorResponse{Message: err.Error(), Code: "mandatory_unanswered"})
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error(), Code: "not_found"})
	case services.IsConflict(err):
		c.JSON(http.StatusConflict, ErrorResponse{Message: err.Error(), Code: "conflict"})
	case services.IsWindowViolation(err):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: err.Error(), Code: "window_violation"})
	case services.IsValidation(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error(), Code: "validation_error"})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}

// Helper methods

func parseIDParam(c *gin.Context, param string) uint {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: c.Param(param),
		})
		return 0
	}
	return uint(id)
}

func parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return false
	}
	return true
}
