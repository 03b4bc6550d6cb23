// Package scoring implements the Irish Points calculation: per-judge
// rank conversion with tie splitting, drop-high/low aggregation, and
// float-tolerant final ranking.
package scoring

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/feisworks/feispoints/internal/domain/model"
	"github.com/feisworks/feispoints/internal/domain/points"
)

// Default calculator configuration constants.
const (
	// defaultTolerance is the epsilon for treating two totals as tied.
	// Totals are rounded to 2 decimals before comparison, so exact
	// equality would usually hold; the tolerance guards against
	// accumulated rounding, and 150.00 vs 150.004 still compare unequal.
	defaultTolerance = 1e-6

	// defaultDropPanelSize is the per-competitor score count that
	// triggers the drop-high/drop-low rule. Championship panels of five
	// drop one high and one low; every other count sums everything.
	defaultDropPanelSize = 5
)

// Calculator converts a round's raw score set into a ranked result.
// Each calculation pass is a pure function of its input: no state is
// carried between calls and the same scores always produce the same
// result.
type Calculator struct {
	tolerance     float64
	dropPanelSize int
}

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithTolerance sets the epsilon used when comparing point totals.
func WithTolerance(eps float64) Option {
	return func(c *Calculator) {
		if eps > 0 {
			c.tolerance = eps
		}
	}
}

// WithDropPanelSize sets the per-competitor score count that triggers
// dropping the highest and lowest per-judge value. Zero disables
// dropping entirely.
func WithDropPanelSize(n int) Option {
	return func(c *Calculator) {
		if n >= 0 {
			c.dropPanelSize = n
		}
	}
}

// New creates a Calculator with default configuration.
func New(opts ...Option) *Calculator {
	c := &Calculator{
		tolerance:     defaultTolerance,
		dropPanelSize: defaultDropPanelSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tolerance returns the configured comparison epsilon.
func (c *Calculator) Tolerance() float64 {
	return c.tolerance
}

// CalculateRound computes the full ranked result for one round from
// its raw scores. Scores are validated at this boundary; past it the
// calculation has no failure paths.
func (c *Calculator) CalculateRound(ctx context.Context, roundID model.RoundID, scores []model.RawScore) (model.RoundResult, error) {
	if err := Validate(roundID, scores); err != nil {
		return model.RoundResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.RoundResult{}, fmt.Errorf("calculation cancelled: %w", err)
	}

	details := convertByJudge(scores)
	totals := c.aggregate(details)
	results := c.rank(totals, details)

	return model.RoundResult{RoundID: roundID, Results: results}, nil
}

// Tied reports whether two point totals compare equal under the
// calculator's tolerance.
func (c *Calculator) Tied(a, b float64) bool {
	return math.Abs(a-b) <= c.tolerance
}

// Validate rejects malformed raw scores before they enter the
// calculator. Non-finite or negative values are invalid input; a score
// claiming a different round is a consistency violation.
func Validate(roundID model.RoundID, scores []model.RawScore) error {
	for _, s := range scores {
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) || s.Value < 0 {
			return fmt.Errorf("%w: score %v from judge %s for competitor %s", ErrInvalidInput, s.Value, s.JudgeID, s.CompetitorID)
		}
		if s.JudgeID == "" || s.CompetitorID == "" {
			return fmt.Errorf("%w: score missing judge or competitor id", ErrInvalidInput)
		}
		if s.RoundID != "" && s.RoundID != roundID {
			return fmt.Errorf("%w: score for round %s submitted against round %s", ErrConsistency, s.RoundID, roundID)
		}
	}
	return nil
}

// convertByJudge runs the per-judge rank-to-points conversion for every
// judge card in the score set. Conversion is strictly per judge: points
// are a property of one judge's ordering of the field, never of raw
// score magnitude across judges.
func convertByJudge(scores []model.RawScore) map[model.CompetitorID][]model.JudgeScoreDetail {
	cards := make(map[model.JudgeID][]model.RawScore)
	for _, s := range scores {
		cards[s.JudgeID] = append(cards[s.JudgeID], s)
	}

	// Deterministic judge order so repeated passes build identical
	// detail lists.
	judges := make([]model.JudgeID, 0, len(cards))
	for j := range cards {
		judges = append(judges, j)
	}
	slices.Sort(judges)

	details := make(map[model.CompetitorID][]model.JudgeScoreDetail)
	for _, j := range judges {
		for _, d := range convertCard(j, cards[j]) {
			details[d.competitor] = append(details[d.competitor], d.detail)
		}
	}
	return details
}

type cardDetail struct {
	competitor model.CompetitorID
	detail     model.JudgeScoreDetail
}

// convertCard converts one judge's card. Competitors are ordered by raw
// value descending; a maximal run of exactly-equal raw values forms a
// tied group occupying rank positions r..r+n-1, and each member gets
// the group's pooled points divided evenly, so tie-break order can
// neither reward nor penalize anyone.
func convertCard(judge model.JudgeID, card []model.RawScore) []cardDetail {
	sorted := make([]model.RawScore, len(card))
	copy(sorted, card)
	slices.SortFunc(sorted, func(a, b model.RawScore) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.CompetitorID, b.CompetitorID)
	})

	out := make([]cardDetail, 0, len(sorted))
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j].Value == sorted[i].Value {
			j++
		}
		rank := i + 1
		n := j - i
		var pooled float64
		for r := rank; r < rank+n; r++ {
			pooled += points.ForRank(r)
		}
		split := round2(pooled / float64(n))
		for k := i; k < j; k++ {
			out = append(out, cardDetail{
				competitor: sorted[k].CompetitorID,
				detail: model.JudgeScoreDetail{
					JudgeID:  judge,
					RawScore: sorted[k].Value,
					Rank:     rank,
					Points:   split,
				},
			})
		}
		i = j
	}
	return out
}

// aggregate sums each competitor's per-judge points. When a competitor
// holds exactly dropPanelSize values the single highest and single
// lowest are discarded first. The trigger is deliberately the literal
// per-competitor count, not the panel size: a competitor missing one
// judge's mark on a five-judge panel gets a plain sum.
func (c *Calculator) aggregate(details map[model.CompetitorID][]model.JudgeScoreDetail) map[model.CompetitorID]float64 {
	totals := make(map[model.CompetitorID]float64, len(details))
	for id, ds := range details {
		values := make([]float64, len(ds))
		for i, d := range ds {
			values[i] = d.Points
		}
		totals[id] = c.aggregateValues(values)
	}
	return totals
}

func (c *Calculator) aggregateValues(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if c.dropPanelSize > 2 && len(values) == c.dropPanelSize {
		sort.Float64s(values)
		values = values[1 : len(values)-1]
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return round2(sum)
}

// rank sorts totals descending and assigns joint placings: every member
// of a tolerance-tied run shares the rank of its first member, and the
// rank after the run skips ahead by the run's size.
func (c *Calculator) rank(totals map[model.CompetitorID]float64, details map[model.CompetitorID][]model.JudgeScoreDetail) []model.RankedResult {
	results := make([]model.RankedResult, 0, len(totals))
	for id, total := range totals {
		ds := details[id]
		slices.SortFunc(ds, func(a, b model.JudgeScoreDetail) int {
			return cmp.Compare(a.JudgeID, b.JudgeID)
		})
		results = append(results, model.RankedResult{
			CompetitorID: id,
			TotalPoints:  total,
			JudgeScores:  ds,
		})
	}
	slices.SortFunc(results, func(a, b model.RankedResult) int {
		if c := cmp.Compare(b.TotalPoints, a.TotalPoints); c != 0 {
			return c
		}
		return cmp.Compare(a.CompetitorID, b.CompetitorID)
	})

	for i := 0; i < len(results); {
		j := i
		for j < len(results) && c.Tied(results[j].TotalPoints, results[i].TotalPoints) {
			j++
		}
		for k := i; k < j; k++ {
			results[k].Rank = i + 1
		}
		i = j
	}
	return results
}

// round2 rounds to 2 decimal places, the precision results are
// published at.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
