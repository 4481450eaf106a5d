package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

type catalogService struct {
	repo      repositories.Repository
	validator *validator.Validator
	ops       *ServiceLogger
}

// NewCatalogService stores questions and papers. Authoring happens
// elsewhere; this is the seeding path used by the CLI and tests.
func NewCatalogService(repo repositories.Repository, v *validator.Validator, logger *slog.Logger) CatalogService {
	return &catalogService{
		repo:      repo,
		validator: v,
		ops:       NewServiceLogger(logger, "catalog"),
	}
}

func (s *catalogService) CreateQuestion(ctx context.Context, q *models.Question) (err error) {
	defer s.ops.Track(ctx, "create_question", "", 0, "question")(&err)

	if err = s.validator.Validate(q); err != nil {
		return err
	}
	if errs := s.validator.Question().ValidateQuestion(q); len(errs) > 0 {
		return errs
	}

	if err = s.repo.Question().Create(ctx, q); err != nil {
		if repositories.IsDuplicateError(err) {
			return ErrCodeTaken
		}
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

func (s *catalogService) CreatePaper(ctx context.Context, p *models.Paper) (err error) {
	defer s.ops.Track(ctx, "create_paper", "", 0, "paper")(&err)

	if err = s.validator.Validate(p); err != nil {
		return err
	}
	if errs := s.validator.Question().ValidatePaper(p); len(errs) > 0 {
		return errs
	}

	for i := range p.Questions {
		if _, err = s.repo.Question().GetByID(ctx, p.Questions[i].QuestionID); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrQuestionNotFound
			}
			return fmt.Errorf("failed to get question: %w", err)
		}
	}

	if err = s.repo.Paper().Create(ctx, p); err != nil {
		if repositories.IsDuplicateError(err) {
			return ErrCodeTaken
		}
		return fmt.Errorf("failed to create paper: %w", err)
	}
	return nil
}
