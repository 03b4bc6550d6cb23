// Package recall computes which competitors advance from a round to
// the next: a 50%-rounded-up cutoff with tie extension at the line.
package recall

import (
	"cmp"
	"math"
	"slices"

	"github.com/feisworks/feispoints/internal/domain/model"
)

// Default selector configuration constants.
const (
	defaultFraction  = 0.5
	defaultTolerance = 1e-6
)

// Selector picks the recalled competitors from a round's ranked
// results. A tie at the cutoff extends the recall to every tied
// competitor; competitors are never eliminated on a tie, even when the
// extension pushes recall well past the nominal fraction.
type Selector struct {
	fraction  float64
	tolerance float64
}

// Option applies a configuration option to the Selector.
type Option func(*Selector)

// WithFraction sets the recall fraction. The cutoff index stays
// ceil(N*fraction), 1-based.
func WithFraction(f float64) Option {
	return func(s *Selector) {
		if f > 0 && f <= 1 {
			s.fraction = f
		}
	}
}

// WithTolerance sets the epsilon used when comparing totals at the
// cutoff line.
func WithTolerance(eps float64) Option {
	return func(s *Selector) {
		if eps > 0 {
			s.tolerance = eps
		}
	}
}

// New creates a Selector with default configuration.
func New(opts ...Option) *Selector {
	s := &Selector{
		fraction:  defaultFraction,
		tolerance: defaultTolerance,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns the recalled competitor ids in descending total-points
// order. The input need not be pre-sorted; the selector re-sorts a copy
// and never mutates its argument.
func (s *Selector) Select(results []model.RankedResult) []model.CompetitorID {
	n := len(results)
	if n == 0 {
		return nil
	}

	sorted := make([]model.RankedResult, n)
	copy(sorted, results)
	slices.SortFunc(sorted, func(a, b model.RankedResult) int {
		if c := cmp.Compare(b.TotalPoints, a.TotalPoints); c != 0 {
			return c
		}
		return cmp.Compare(a.CompetitorID, b.CompetitorID)
	})

	cutoffIndex := int(math.Ceil(float64(n) * s.fraction)) // 1-based
	if cutoffIndex >= n {
		recalled := make([]model.CompetitorID, n)
		for i, r := range sorted {
			recalled[i] = r.CompetitorID
		}
		return recalled
	}

	cutoffValue := sorted[cutoffIndex-1].TotalPoints
	recalled := make([]model.CompetitorID, 0, cutoffIndex)
	for _, r := range sorted {
		// Sorted descending, so the first total strictly below the
		// cutoff value ends the scan.
		if r.TotalPoints < cutoffValue-s.tolerance {
			break
		}
		recalled = append(recalled, r.CompetitorID)
	}
	return recalled
}
