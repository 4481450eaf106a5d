package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

// CachedPaperRepository is a read-through cache in front of a paper store.
// Every submission reads the paper, so this keeps the hot path off the
// database. Cache failures degrade to the underlying store.
type CachedPaperRepository struct {
	inner  repositories.PaperRepository
	cache  CacheService
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedPaperRepository(inner repositories.PaperRepository, cache CacheService, ttl time.Duration, logger *slog.Logger) *CachedPaperRepository {
	return &CachedPaperRepository{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func paperKey(id uint) string {
	return fmt.Sprintf("paper:%d", id)
}

func (c *CachedPaperRepository) Create(ctx context.Context, paper *models.Paper) error {
	if err := c.inner.Create(ctx, paper); err != nil {
		return err
	}
	if err := c.cache.Delete(ctx, paperKey(paper.ID)); err != nil {
		c.logger.Warn("Failed to invalidate paper cache", "paper_id", paper.ID, "error", err)
	}
	return nil
}

func (c *CachedPaperRepository) GetByID(ctx context.Context, id uint) (*models.Paper, error) {
	var cached models.Paper
	err := c.cache.Get(ctx, paperKey(id), &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("Paper cache read failed", "paper_id", id, "error", err)
	}

	paper, err := c.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, paperKey(id), paper, c.ttl); err != nil {
		c.logger.Warn("Paper cache write failed", "paper_id", id, "error", err)
	}
	return paper, nil
}
