package services

import (
	"log/slog"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

// ServiceManager hands the transport layers their services.
type ServiceManager interface {
	Attempt() AttemptService
	Exam() ExamService
	Conclusion() ConclusionService
	Catalog() CatalogService
	Results() ResultService
	Simulation() SimulationService
}

type Dependencies struct {
	Repo       repositories.Repository
	Publisher  events.EventPublisher
	Jobs       JobScheduler
	Locker     Locker
	Validator  *validator.Validator
	Clock      utils.Clock
	Logger     *slog.Logger
	Conclusion ConclusionConfig
}

type serviceManager struct {
	attempt    AttemptService
	exam       ExamService
	conclusion ConclusionService
	catalog    CatalogService
	results    ResultService
	simulation SimulationService
}

// NewServiceManager wires every service over the same dependencies. The
// conclusion service it exposes always runs under the exam lock.
func NewServiceManager(deps Dependencies) ServiceManager {
	if deps.Clock == nil {
		deps.Clock = utils.SystemClock
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}

	conclusion := NewLockedConclusionService(
		NewConclusionService(deps.Repo, deps.Publisher, deps.Conclusion, deps.Clock, deps.Logger),
		deps.Locker,
		deps.Logger,
	)

	return &serviceManager{
		attempt:    NewAttemptService(deps.Repo, deps.Publisher, deps.Validator, deps.Clock, deps.Logger),
		exam:       NewExamService(deps.Repo, deps.Jobs, deps.Publisher, deps.Validator, deps.Clock, deps.Logger),
		conclusion: conclusion,
		catalog:    NewCatalogService(deps.Repo, deps.Validator, deps.Logger),
		results:    NewResultService(deps.Repo, deps.Logger),
		simulation: NewSimulationService(deps.Repo, conclusion, deps.Logger),
	}
}

func (m *serviceManager) Attempt() AttemptService       { return m.attempt }
func (m *serviceManager) Exam() ExamService             { return m.exam }
func (m *serviceManager) Conclusion() ConclusionService { return m.conclusion }
func (m *serviceManager) Catalog() CatalogService       { return m.catalog }
func (m *serviceManager) Results() ResultService        { return m.results }
func (m *serviceManager) Simulation() SimulationService { return m.simulation }
