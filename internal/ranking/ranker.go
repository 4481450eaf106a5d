// Package ranking assigns standard competition ranks ("1,2,2,4") and
// percentiles to a stream of scores sorted in descending order.
package ranking

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnsortedStream = errors.New("scores must arrive in descending order")
	ErrStreamOverrun  = errors.New("stream yielded more scores than the counted total")
)

type Placement struct {
	Rank       int
	Percentile float64
}

// Ranker consumes scores one at a time, so the whole result set never has
// to be held in memory.
type Ranker struct {
	total    int
	position int
	rank     int
	previous int

	highest int
	lowest  int
}

func NewRanker(total int) *Ranker {
	return &Ranker{total: total}
}

// Next places the next score in the stream.
func (r *Ranker) Next(score int) (Placement, error) {
	if r.position >= r.total {
		return Placement{}, fmt.Errorf("%w: total %d", ErrStreamOverrun, r.total)
	}

	if r.position == 0 {
		r.rank = 1
		r.highest = score
		r.lowest = score
	} else {
		if score > r.previous {
			return Placement{}, fmt.Errorf("%w: %d after %d", ErrUnsortedStream, score, r.previous)
		}
		if score < r.previous {
			r.rank = r.position + 1
		}
		r.lowest = score
	}

	r.previous = score
	r.position++

	return Placement{Rank: r.rank, Percentile: Percentile(r.rank, r.total)}, nil
}

// Seen is the number of scores placed so far.
func (r *Ranker) Seen() int {
	return r.position
}

// Extremes returns the highest and lowest scores observed.
func (r *Ranker) Extremes() (highest, lowest int) {
	return r.highest, r.lowest
}

// Percentile is 100 × (total − rank) / total rounded to 4 decimal places.
func Percentile(rank, total int) float64 {
	if total <= 0 {
		return 0
	}
	raw := 100 * float64(total-rank) / float64(total)
	return math.Round(raw*10000) / 10000
}
