// Package advance implements dancer level progression: a configurable
// rule table mapping a level to its win threshold, the evaluator that
// turns placement history into advancement notices, and the
// registration eligibility check.
package advance

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/feisworks/feispoints/internal/domain/model"
)

// Rule describes how a dancer leaves one level.
type Rule struct {
	// WinsRequired is the number of rank-1 placements needed.
	WinsRequired int
	// NextLevel is the level the dancer moves to on acknowledgment.
	NextLevel model.Level
	// PerDance scopes the win count to each dance type independently;
	// otherwise any WinsRequired wins at the level qualify together.
	PerDance bool
}

// Rules maps a current level to its advancement rule. Levels without
// an entry, such as the top tier, never advance automatically.
type Rules map[model.Level]Rule

// Evaluator detects qualifying wins in placement history and emits
// advancement notices for the caller to persist. The rule table is
// copied at construction and never mutated afterwards, so one
// evaluator can serve concurrent checks and rule-set variants are a
// matter of constructing another evaluator.
type Evaluator struct {
	rules Rules
	now   func() time.Time
	newID func() model.NoticeID
}

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithClock sets the time source used for notice timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator sets the notice id generator.
func WithIDGenerator(gen func() model.NoticeID) Option {
	return func(e *Evaluator) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// New creates an Evaluator over an immutable copy of rules.
func New(rules Rules, opts ...Option) *Evaluator {
	copied := make(Rules, len(rules))
	for level, rule := range rules {
		copied[level] = rule
	}
	e := &Evaluator{
		rules: copied,
		now:   time.Now,
		newID: func() model.NoticeID { return model.NoticeID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rule returns the advancement rule for a level, if one exists.
func (e *Evaluator) Rule(level model.Level) (Rule, bool) {
	r, ok := e.rules[level]
	return r, ok
}

// Check evaluates a dancer's placement history against the rule for
// their current level and returns new, unpersisted notices. A tuple
// (dancer, from_level, dance_type) that already has a notice in
// existing, whatever its lifecycle state, never produces another one,
// which makes Check idempotent over unchanged history.
func (e *Evaluator) Check(dancer model.Dancer, history []model.PlacementHistory, existing []model.AdvancementNotice) []model.AdvancementNotice {
	rule, ok := e.rules[dancer.CurrentLevel]
	if !ok {
		return nil
	}

	wins := qualifyingWins(dancer.CurrentLevel, history)
	if len(wins) == 0 {
		return nil
	}

	noticed := make(map[model.DanceType]bool, len(existing))
	for _, n := range existing {
		if n.DancerID == dancer.ID && n.FromLevel == dancer.CurrentLevel {
			noticed[n.DanceType] = true
		}
	}

	if !rule.PerDance {
		if len(wins) < rule.WinsRequired || noticed[model.AllDances] {
			return nil
		}
		return []model.AdvancementNotice{e.newNotice(dancer, rule, model.AllDances, wins[len(wins)-1])}
	}

	byDance := make(map[model.DanceType][]model.PlacementHistory)
	for _, w := range wins {
		byDance[w.DanceType] = append(byDance[w.DanceType], w)
	}
	dances := make([]model.DanceType, 0, len(byDance))
	for d := range byDance {
		dances = append(dances, d)
	}
	slices.Sort(dances)

	var notices []model.AdvancementNotice
	for _, d := range dances {
		danceWins := byDance[d]
		if len(danceWins) < rule.WinsRequired || noticed[d] {
			continue
		}
		notices = append(notices, e.newNotice(dancer, rule, d, danceWins[len(danceWins)-1]))
	}
	return notices
}

// Eligible reports whether a dancer may register for a competition at
// their current level. An open notice whose from-level matches the
// competition blocks registration when it spans all dances or matches
// the competition's dance type; acknowledged and overridden notices
// are inert.
func Eligible(dancer model.Dancer, comp model.Competition, notices []model.AdvancementNotice) (bool, string) {
	if comp.Level != "" && comp.Level != dancer.CurrentLevel {
		return false, "dancer is registered at level " + string(dancer.CurrentLevel) + ", not " + string(comp.Level)
	}
	for _, n := range notices {
		if !n.Open() || n.DancerID != dancer.ID || n.FromLevel != comp.Level {
			continue
		}
		if n.DanceType == model.AllDances || n.DanceType == comp.DanceType {
			return false, "pending advancement to " + string(n.ToLevel) + " must be acknowledged or overridden first"
		}
	}
	return true, ""
}

// qualifyingWins filters history down to rank-1 placements at the
// given level, ordered by competition date then placement id so the
// newest win is last.
func qualifyingWins(level model.Level, history []model.PlacementHistory) []model.PlacementHistory {
	var wins []model.PlacementHistory
	for _, p := range history {
		if p.Rank == 1 && p.Level == level {
			wins = append(wins, p)
		}
	}
	slices.SortFunc(wins, func(a, b model.PlacementHistory) int {
		if c := a.CompetitionDate.Compare(b.CompetitionDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return wins
}

func (e *Evaluator) newNotice(dancer model.Dancer, rule Rule, dance model.DanceType, trigger model.PlacementHistory) model.AdvancementNotice {
	return model.AdvancementNotice{
		ID:                    e.newID(),
		DancerID:              dancer.ID,
		FromLevel:             dancer.CurrentLevel,
		ToLevel:               rule.NextLevel,
		DanceType:             dance,
		TriggeringPlacementID: trigger.ID,
		CreatedAt:             e.now(),
	}
}

// Acknowledge marks a notice accepted. The caller owns moving the
// dancer to the notice's target level; acknowledging only closes the
// notice. Acknowledging an already-resolved notice is a consistency
// violation since both end states are terminal.
func Acknowledge(n model.AdvancementNotice, actorID string, at time.Time) (model.AdvancementNotice, error) {
	if !n.Open() {
		return model.AdvancementNotice{}, ErrAlreadyResolved
	}
	n.Acknowledged = true
	n.AcknowledgedAt = &at
	n.AcknowledgedBy = actorID
	return n, nil
}

// Override marks a notice rejected with an audit trail. The dancer
// stays at their level and the notice stops blocking registration and
// drops out of pending queries.
func Override(n model.AdvancementNotice, actorID, reason string) (model.AdvancementNotice, error) {
	if !n.Open() {
		return model.AdvancementNotice{}, ErrAlreadyResolved
	}
	n.Overridden = true
	n.OverriddenBy = actorID
	n.OverrideReason = reason
	return n, nil
}
