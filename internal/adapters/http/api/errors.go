package api

import "errors"

var (
	// ErrBadRequest indicates a malformed request body or path.
	ErrBadRequest = errors.New("bad request")
	// ErrMissingJudge indicates the judge identifier was absent.
	ErrMissingJudge = errors.New("judge_id is required")
	// ErrMissingCompetitor indicates the competitor identifier was absent.
	ErrMissingCompetitor = errors.New("competitor_id is required")
	// ErrMissingRound indicates the round identifier was absent.
	ErrMissingRound = errors.New("round_id is required")
	// ErrMissingLevel indicates the level query parameter was absent.
	ErrMissingLevel = errors.New("level is required")
	// ErrMissingActor indicates the acting teacher or admin was absent.
	ErrMissingActor = errors.New("actor_id is required")
	// ErrMissingReason indicates an override without a reason.
	ErrMissingReason = errors.New("reason is required")
)
