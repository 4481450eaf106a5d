package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories/memory"
	"github.com/SAP-F-2025/exam-service/internal/scheduler"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
)

var (
	windowStart = time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)
	windowEnd   = windowStart.Add(90 * time.Minute)
)

type discardQueue struct{}

func (discardQueue) Enqueue(context.Context, scheduler.Job) error { return nil }

type testServer struct {
	router *gin.Engine
	store  *memory.Store
	sched  *scheduler.RedisScheduler

	mu  sync.Mutex
	now time.Time

	paperID    uint
	examID     uint
	questionID uint
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := &testServer{store: memory.NewStore(), now: windowStart.Add(10 * time.Minute)}
	logger := utils.NewDiscardLogger()
	s.sched = scheduler.NewRedisScheduler(client, discardQueue{}, scheduler.RedisSchedulerConfig{Clock: s.clock}, logger)

	manager := services.NewServiceManager(services.Dependencies{
		Repo:      s.store,
		Publisher: events.NewMockEventPublisher(logger),
		Jobs:      s.sched,
		Locker:    scheduler.NewExamLock(client, "test:lock:", time.Minute),
		Clock:     s.clock,
		Logger:    logger,
	})

	s.router = gin.New()
	s.router.Use(utils.RequestLogger(logger))
	NewHandlerManager(manager, logger).SetupRoutes(s.router)

	s.seed(t)
	return s
}

func (s *testServer) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *testServer) setNow(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = t
}

func (s *testServer) seed(t *testing.T) {
	ctx := context.Background()
	q := &models.Question{Code: "G1", Type: models.QuestionSingleCorrect, SubjectCode: "geography", Statement: "Capital?",
		Options: []models.QuestionOption{{Code: "g1a", Correct: true, Weight: 100}, {Code: "g1b", Order: 1}}}
	require.NoError(t, s.store.Question().Create(ctx, q))
	s.questionID = q.ID

	paper := &models.Paper{Code: "GEO", Name: "Geography", Type: models.PaperReal, DurationMinutes: 60,
		Questions: []models.PaperQuestion{{QuestionID: q.ID, PositiveScore: 3, NegativeScore: 1}}}
	require.NoError(t, s.store.Paper().Create(ctx, paper))
	s.paperID = paper.ID

	exam := &models.Exam{PaperID: paper.ID, Name: "Geo cup", StartTime: windowStart, EndTime: windowEnd}
	require.NoError(t, s.store.Exam().Create(ctx, exam))
	s.examID = exam.ID
}

func (s *testServer) do(method, path, user, role string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(userIDHeader, user)
	}
	if role != "" {
		req.Header.Set(userRoleHeader, role)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequiresIdentity(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, fmt.Sprintf("/api/v1/exams/%d", s.examID), "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAttemptFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	enroll := fmt.Sprintf("/api/v1/exams/%d/enroll", s.examID)

	w := s.do(http.MethodPost, enroll, "ana", "", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, enroll, "ana", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", decode[ErrorResponse](t, w).Code)

	w = s.do(http.MethodPost, "/api/v1/attempts/start", "ana", "", map[string]interface{}{
		"paper_id": s.paperID, "exam_id": s.examID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	attempt := decode[models.Attempt](t, w)
	assert.Equal(t, models.AttemptInProgress, attempt.Status)

	answers := fmt.Sprintf("/api/v1/attempts/%d/answers", attempt.ID)
	w = s.do(http.MethodPost, answers, "ana", "", map[string]interface{}{
		"question_id": s.questionID, "options_chosen": []string{"g1a"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 3, decode[models.Submission](t, w).Score)

	w = s.do(http.MethodPost, answers, "ana", "", map[string]interface{}{
		"question_id": s.questionID, "options_chosen": []string{"g1b"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/attempts/%d", attempt.ID), "ben", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/attempts/%d/end", attempt.ID), "ana", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.AttemptCompleted, decode[models.Attempt](t, w).Status)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/exams/%d/results", s.examID), "ana", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)

	t.Run("validation", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/v1/attempts/start", "ana", "", map[string]interface{}{"paper_id": 0})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_error", decode[ErrorResponse](t, w).Code)
	})

	t.Run("window violation", func(t *testing.T) {
		w := s.do(http.MethodPost, fmt.Sprintf("/api/v1/exams/%d/enroll", s.examID), "cy", "", nil)
		require.Equal(t, http.StatusCreated, w.Code)

		s.setNow(windowEnd.Add(time.Minute))
		defer s.setNow(windowStart.Add(10 * time.Minute))
		w = s.do(http.MethodPost, "/api/v1/attempts/start", "cy", "", map[string]interface{}{
			"paper_id": s.paperID, "exam_id": s.examID,
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "window_violation", decode[ErrorResponse](t, w).Code)
	})

	t.Run("not found", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/exams/999", "ana", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/v1/exams/abc", "ana", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	body := map[string]interface{}{
		"paper_id": s.paperID, "name": "Geo final",
		"start_time": windowEnd.Add(24 * time.Hour), "end_time": windowEnd.Add(26 * time.Hour),
	}

	w := s.do(http.MethodPost, "/api/v1/exams", "ana", "", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/v1/exams", "root", "admin", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	exam := decode[models.Exam](t, w)

	pending, err := s.sched.Pending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/exams/%d/conclude", exam.ID), "root", "admin", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	s.setNow(windowEnd)
	w = s.do(http.MethodPost, fmt.Sprintf("/api/v1/exams/%d/conclude", s.examID), "root", "admin", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
}
