package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-service/internal/services"
)

type HandlerManager struct {
	attemptHandler  *AttemptHandler
	examHandler     *ExamHandler
	questionHandler *QuestionHandler
}

func NewHandlerManager(serviceManager services.ServiceManager, logger *slog.Logger) *HandlerManager {
	return &HandlerManager{
		attemptHandler:  NewAttemptHandler(serviceManager.Attempt(), logger),
		examHandler:     NewExamHandler(serviceManager.Exam(), serviceManager.Results(), logger),
		questionHandler: NewQuestionHandler(serviceManager.Catalog(), logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "exam-service",
		})
	})

	v1 := router.Group("/api/v1", RequireUser())
	{
		exams := v1.Group("/exams")
		{
			exams.GET("/:id", hm.examHandler.GetExam)
			exams.POST("/:id/enroll", hm.attemptHandler.Enroll)
			exams.GET("/:id/results", hm.examHandler.ListResults)
		}

		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.POST("/:id/answers", hm.attemptHandler.SubmitAnswer)
			attempts.POST("/:id/end", hm.attemptHandler.EndAttempt)
		}

		v1.GET("/papers/:id/next-question", hm.attemptHandler.NextQuestion)

		// Administrative routes
		admin := v1.Group("", RequireAdmin())
		{
			admin.POST("/questions", hm.questionHandler.CreateQuestion)
			admin.POST("/papers", hm.questionHandler.CreatePaper)
			admin.POST("/exams", hm.examHandler.CreateExam)
			admin.POST("/exams/:id/conclude", hm.examHandler.ConcludeExam)
			admin.GET("/exams/:id/results/export", hm.examHandler.ExportResults)
		}
	}
}
