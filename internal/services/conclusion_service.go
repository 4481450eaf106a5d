package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/ranking"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/utils"
)

const DefaultRankBatchSize = 5000

type ConclusionConfig struct {
	BatchSize int
	// Reconcile rebuilds running totals from submissions before ranking.
	Reconcile bool
}

type conclusionService struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	cfg       ConclusionConfig
	clock     utils.Clock
	logger    *slog.Logger
	ops       *ServiceLogger
}

// NewConclusionService builds the ranking pipeline. It assumes a single
// run per exam at a time; callers serialize runs with a Locker.
func NewConclusionService(repo repositories.Repository, publisher events.EventPublisher, cfg ConclusionConfig, clock utils.Clock, logger *slog.Logger) ConclusionService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultRankBatchSize
	}
	if cfg.BatchSize > repositories.MaxRankUpdatesPerBatch {
		logger.Warn("Rank batch size capped",
			"requested", cfg.BatchSize,
			"max", repositories.MaxRankUpdatesPerBatch)
		cfg.BatchSize = repositories.MaxRankUpdatesPerBatch
	}
	return &conclusionService{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
		ops:       NewServiceLogger(logger, "conclusion"),
	}
}

func (s *conclusionService) Conclude(ctx context.Context, examID uint) (summary *ConclusionSummary, err error) {
	defer s.ops.Track(ctx, "conclude", "", examID, "exam")(&err)

	exam, err := s.repo.Exam().GetByIDWithPaper(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.Paper == nil {
		return nil, ErrPaperNotFound
	}
	paper := exam.Paper

	summary = &ConclusionSummary{
		ExamID:         examID,
		MaxScore:       paper.MaxScore(),
		SubjectsRanked: make(map[string]int),
	}

	if s.cfg.Reconcile {
		if err = s.repo.Attempt().ReconcileScores(ctx, examID, paper.SubjectMaxScores()); err != nil {
			return nil, fmt.Errorf("failed to reconcile scores: %w", err)
		}
	}

	total, err := s.repo.Attempt().CountActive(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active attempts: %w", err)
	}
	summary.AttemptedCount = int(total)

	if total > 0 {
		if err = s.rankOverall(ctx, examID, int(total), summary); err != nil {
			return nil, err
		}
		for _, subject := range paper.SubjectCodes() {
			n, err := s.rankSubject(ctx, examID, subject, summary)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				summary.SubjectsRanked[string(subject)] = n
			}
		}
	}

	summary.ConcludedOn = s.clock()
	err = s.repo.Exam().SaveConclusion(ctx, examID, repositories.ExamConclusion{
		AttemptedCount: summary.AttemptedCount,
		HighestScore:   summary.HighestScore,
		LowestScore:    summary.LowestScore,
		MaxScore:       summary.MaxScore,
		ConcludedOn:    summary.ConcludedOn,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save conclusion: %w", err)
	}

	s.logger.Info("Exam concluded",
		"exam_id", examID,
		"attempted", summary.AttemptedCount,
		"highest", summary.HighestScore,
		"lowest", summary.LowestScore,
		"batches", summary.Batches)

	publishEvent(ctx, s.publisher, s.logger, summary.ConcludedOn, events.EventExamConcluded, events.ExamConcludedEvent{
		ExamID:         examID,
		AttemptedCount: summary.AttemptedCount,
		HighestScore:   summary.HighestScore,
		LowestScore:    summary.LowestScore,
		MaxScore:       summary.MaxScore,
		ConcludedOn:    summary.ConcludedOn,
	})

	return summary, nil
}

func (s *conclusionService) rankOverall(ctx context.Context, examID uint, total int, summary *ConclusionSummary) error {
	ranker := ranking.NewRanker(total)
	batcher := newRankBatcher(s.cfg.BatchSize, s.repo.Attempt().ApplyRanks)

	err := s.repo.Attempt().StreamScores(ctx, examID, func(row repositories.RankedScore) error {
		placement, err := ranker.Next(row.Score)
		if err != nil {
			return err
		}
		return batcher.add(ctx, repositories.RankUpdate{
			AttemptID:  row.AttemptID,
			Rank:       placement.Rank,
			Percentile: placement.Percentile,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to rank attempts: %w", err)
	}
	if err = batcher.flush(ctx); err != nil {
		return fmt.Errorf("failed to write ranks: %w", err)
	}

	summary.HighestScore, summary.LowestScore = ranker.Extremes()
	summary.Batches += batcher.batches

	if ranker.Seen() != total {
		s.logger.Warn("Attempt set changed while ranking",
			"exam_id", examID, "counted", total, "streamed", ranker.Seen())
	}
	return nil
}

// rankSubject ranks the attempts holding a bucket for the subject. Attempts
// without one are left untouched.
func (s *conclusionService) rankSubject(ctx context.Context, examID uint, subject models.SubjectCode, summary *ConclusionSummary) (int, error) {
	total, err := s.repo.Attempt().CountActiveWithSubject(ctx, examID, subject)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s attempts: %w", subject, err)
	}
	if total == 0 {
		return 0, nil
	}

	ranker := ranking.NewRanker(int(total))
	batcher := newRankBatcher(s.cfg.BatchSize, func(ctx context.Context, updates []repositories.RankUpdate) error {
		return s.repo.Attempt().ApplySubjectRanks(ctx, subject, updates)
	})

	err = s.repo.Attempt().StreamSubjectScores(ctx, examID, subject, func(row repositories.RankedScore) error {
		placement, err := ranker.Next(row.Score)
		if err != nil {
			return err
		}
		return batcher.add(ctx, repositories.RankUpdate{
			AttemptID:  row.AttemptID,
			Rank:       placement.Rank,
			Percentile: placement.Percentile,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to rank %s: %w", subject, err)
	}
	if err = batcher.flush(ctx); err != nil {
		return 0, fmt.Errorf("failed to write %s ranks: %w", subject, err)
	}

	summary.Batches += batcher.batches
	s.logger.Debug("Subject ranked", "exam_id", examID, "subject", subject, "attempts", total, "batches", batcher.batches)
	return int(total), nil
}

// rankBatcher buffers rank updates and writes them in groups of at most size.
type rankBatcher struct {
	size    int
	pending []repositories.RankUpdate
	write   func(context.Context, []repositories.RankUpdate) error
	batches int
}

func newRankBatcher(size int, write func(context.Context, []repositories.RankUpdate) error) *rankBatcher {
	return &rankBatcher{
		size:    size,
		pending: make([]repositories.RankUpdate, 0, size),
		write:   write,
	}
}

func (b *rankBatcher) add(ctx context.Context, update repositories.RankUpdate) error {
	b.pending = append(b.pending, update)
	if len(b.pending) >= b.size {
		return b.flush(ctx)
	}
	return nil
}

func (b *rankBatcher) flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	if err := b.write(ctx, b.pending); err != nil {
		return err
	}
	b.batches++
	b.pending = b.pending[:0]
	return nil
}
