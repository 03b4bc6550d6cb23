// Package model contains domain models passed between layers.
package model

import "time"

// Identifier types. Keeping every entity id distinct at the type level
// prevents the judge/competitor/dancer mixups that loosely-typed string
// keys invite.
type (
	// JudgeID identifies an adjudicator.
	JudgeID string
	// CompetitorID identifies a competitor number within a round.
	CompetitorID string
	// DancerID identifies a registered dancer.
	DancerID string
	// RoundID identifies a single round of a competition.
	RoundID string
	// CompetitionID identifies a competition within a feis.
	CompetitionID string
	// FeisID identifies a feis (event).
	FeisID string
	// EntryID identifies a dancer's entry into a competition.
	EntryID string
	// NoticeID identifies an advancement notice.
	NoticeID string
	// Level is a dancer grade, e.g. "novice" or "prizewinner".
	Level string
	// DanceType is a dance category, e.g. "reel" or "slip_jig".
	// The empty value means "all dances".
	DanceType string
)

// AllDances is the DanceType value meaning a notice or rule spans
// every dance type rather than one category.
const AllDances DanceType = ""

// RawScore is one judge's mark for one competitor in one round.
type RawScore struct {
	JudgeID      JudgeID
	CompetitorID CompetitorID
	RoundID      RoundID
	Value        float64
	Notes        string
}

// JudgeScoreDetail is the derived per-judge record: the rank the
// competitor held within that judge's card and the Irish Points the
// rank converted to, after tie splitting.
type JudgeScoreDetail struct {
	JudgeID  JudgeID
	RawScore float64
	Rank     int
	Points   float64
}

// RankedResult is a competitor's aggregate across all judges.
// Recomputed in full from the raw score set on every calculation pass.
type RankedResult struct {
	CompetitorID CompetitorID
	TotalPoints  float64
	Rank         int
	JudgeScores  []JudgeScoreDetail
}

// RoundResult is the output artifact of one full calculation pass.
type RoundResult struct {
	RoundID RoundID
	Results []RankedResult
}

// PlacementHistory is an append-only record of a dancer's final
// placement in one competition. Only TriggeredAdvancement is ever
// mutated, and only by advancement processing.
type PlacementHistory struct {
	ID                   string
	DancerID             DancerID
	CompetitionID        CompetitionID
	FeisID               FeisID
	EntryID              EntryID
	Rank                 int
	Points               float64
	DanceType            DanceType
	Level                Level
	CompetitionDate      time.Time
	TriggeredAdvancement bool
}

// AdvancementNotice records a detected qualifying win. Lifecycle:
// created, then either acknowledged (dancer moves up) or overridden
// (dancer stays, with an audit trail). Both end states are terminal.
type AdvancementNotice struct {
	ID                    NoticeID
	DancerID              DancerID
	FromLevel             Level
	ToLevel               Level
	DanceType             DanceType // AllDances when the rule spans every dance
	Acknowledged          bool
	AcknowledgedAt        *time.Time
	AcknowledgedBy        string
	Overridden            bool
	OverriddenBy          string
	OverrideReason        string
	TriggeringPlacementID string
	CreatedAt             time.Time
}

// Open reports whether the notice still blocks registration: neither
// acknowledged nor overridden.
func (n AdvancementNotice) Open() bool {
	return !n.Acknowledged && !n.Overridden
}

// Dancer carries the identity and current grade of a dancer.
type Dancer struct {
	ID           DancerID
	Name         string
	CurrentLevel Level
}

// Competition carries the fields eligibility and finalization need.
type Competition struct {
	ID        CompetitionID
	FeisID    FeisID
	Level     Level
	DanceType DanceType
	Date      time.Time
}

// Entry links a competitor number in a round back to the dancer it
// belongs to, for placement persistence after finalization.
type Entry struct {
	EntryID  EntryID
	DancerID DancerID
}

// RecalcJob asks the pipeline to recompute one round from its raw
// score set.
type RecalcJob struct {
	RoundID    RoundID
	EnqueuedAt time.Time
}
