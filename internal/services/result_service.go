package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

const (
	resultsSheet    = "Results"
	exportPageSize  = 500
	maxResultsLimit = 500
)

type resultService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewResultService(repo repositories.Repository, logger *slog.Logger) ResultService {
	return &resultService{repo: repo, logger: logger}
}

func (s *resultService) List(ctx context.Context, examID uint, filters repositories.ResultFilters) (*ResultPage, error) {
	exam, err := s.concludedExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	if filters.Limit <= 0 || filters.Limit > maxResultsLimit {
		filters.Limit = 50
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	attempts, total, err := s.repo.Attempt().ListRanked(ctx, examID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	return &ResultPage{
		Exam:    exam,
		Results: attempts,
		Total:   total,
		Limit:   filters.Limit,
		Offset:  filters.Offset,
	}, nil
}

// ExportXLSX writes the ranked results of a concluded exam as a workbook,
// paging through the attempts so the sheet is streamed row by row.
func (s *resultService) ExportXLSX(ctx context.Context, examID uint, w io.Writer) error {
	exam, err := s.concludedExam(ctx, examID)
	if err != nil {
		return err
	}

	paper, err := s.repo.Paper().GetByID(ctx, exam.PaperID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrPaperNotFound
		}
		return fmt.Errorf("failed to get paper: %w", err)
	}
	subjects := paper.SubjectCodes()

	f := excelize.NewFile()
	defer f.Close()

	if err = f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(resultsSheet)
	if err != nil {
		return fmt.Errorf("failed to open sheet: %w", err)
	}

	header := []interface{}{"Rank", "User ID", "Attempt ID", "Score", "Max Score", "Percentile", "Status"}
	for _, subject := range subjects {
		header = append(header, string(subject)+" score", string(subject)+" rank", string(subject)+" percentile")
	}
	if err = sw.SetRow("A1", header); err != nil {
		return err
	}

	row := 2
	for offset := 0; ; offset += exportPageSize {
		attempts, _, err := s.repo.Attempt().ListRanked(ctx, examID, repositories.ResultFilters{Limit: exportPageSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("failed to list results: %w", err)
		}
		for _, a := range attempts {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			if err = sw.SetRow(cell, resultRow(a, subjects)); err != nil {
				return err
			}
			row++
		}
		if len(attempts) < exportPageSize {
			break
		}
	}

	if err = sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err = f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	s.logger.Info("Results exported", "exam_id", examID, "rows", row-2)
	return nil
}

func (s *resultService) concludedExam(ctx context.Context, examID uint) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if !exam.IsConcluded() {
		return nil, ErrExamNotConcluded
	}
	return exam, nil
}

func resultRow(a *models.Attempt, subjects []models.SubjectCode) []interface{} {
	cells := []interface{}{
		derefInt(a.Rank), a.UserID, a.ID, a.TotalScore, a.MaxTotalScore, derefFloat(a.Percentile), string(a.Status),
	}
	for _, subject := range subjects {
		bucket, ok := a.SubjectScore(subject)
		if !ok {
			cells = append(cells, nil, nil, nil)
			continue
		}
		cells = append(cells, bucket.TotalScore, derefInt(bucket.Rank), derefFloat(bucket.Percentile))
	}
	return cells
}

func derefInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func derefFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
