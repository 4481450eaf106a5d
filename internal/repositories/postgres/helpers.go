package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

const uniqueViolation = "23505"

type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// ApplyPagination applies limit/offset, falling back to a default page size.
func (h *SharedHelpers) ApplyPagination(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return query.Limit(limit).Offset(offset)
}

// TranslateError maps driver errors onto the repository error taxonomy.
func (h *SharedHelpers) TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", repositories.ErrDuplicate, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repositories.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// RankValues renders updates as a VALUES list for an UPDATE ... FROM join.
func (h *SharedHelpers) RankValues(updates []repositories.RankUpdate) (string, []interface{}) {
	rows := make([]string, 0, len(updates))
	args := make([]interface{}, 0, len(updates)*3)
	for _, u := range updates {
		rows = append(rows, "(?::bigint, ?::integer, ?::double precision)")
		args = append(args, u.AttemptID, u.Rank, u.Percentile)
	}
	return strings.Join(rows, ", "), args
}
