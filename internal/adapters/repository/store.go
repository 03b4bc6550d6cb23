// Package repository defines the persistence collaborator the engine
// reads scores and history from and writes placements and notices to.
package repository

import (
	"context"

	"github.com/feisworks/feispoints/internal/domain/model"
)

// Store provides read/write access to scores, placement history, and
// advancement notices. The engine holds no durable state of its own;
// every calculation pass rereads the raw score set through this
// boundary.
type Store interface {
	// SaveRawScore upserts one judge's mark; a resubmission for the
	// same (round, judge, competitor) overwrites the previous value.
	SaveRawScore(ctx context.Context, score model.RawScore) error

	// RawScores returns all raw scores recorded for a round.
	RawScores(ctx context.Context, roundID model.RoundID) ([]model.RawScore, error)

	// SavePlacement upserts one placement history record keyed on
	// (dancer, competition); re-finalizing a round refreshes the
	// existing record rather than adding another.
	SavePlacement(ctx context.Context, p model.PlacementHistory) error

	// Placements returns a dancer's full placement history.
	Placements(ctx context.Context, dancerID model.DancerID) ([]model.PlacementHistory, error)

	// MarkPlacementAdvancement flags a placement as having triggered
	// an advancement notice. The only mutation placements ever see.
	MarkPlacementAdvancement(ctx context.Context, placementID string) error

	// SaveNotice persists a new advancement notice. Returns
	// ErrDuplicateNotice when a notice for the same
	// (dancer, from_level, dance_type) tuple already exists.
	SaveNotice(ctx context.Context, n model.AdvancementNotice) error

	// Notice returns a notice by id, or ErrNotFound.
	Notice(ctx context.Context, id model.NoticeID) (model.AdvancementNotice, error)

	// Notices returns a dancer's notices at a level, every lifecycle
	// state included.
	Notices(ctx context.Context, dancerID model.DancerID, level model.Level) ([]model.AdvancementNotice, error)

	// NoticesForDancer returns all of a dancer's notices.
	NoticesForDancer(ctx context.Context, dancerID model.DancerID) ([]model.AdvancementNotice, error)

	// UpdateNotice replaces a persisted notice after an acknowledge or
	// override transition. Returns ErrNotFound for an unknown id.
	UpdateNotice(ctx context.Context, n model.AdvancementNotice) error

	// Close releases underlying resources.
	Close() error
}
