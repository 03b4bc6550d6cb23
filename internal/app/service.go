// Package service provides the core business service that implements
// the dependencies required by the HTTP API: score intake, round
// calculation, recall selection, finalization, and the advancement
// lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feisworks/feispoints/internal/adapters/broadcast"
	jobqueue "github.com/feisworks/feispoints/internal/adapters/mq/queue"
	workerpool "github.com/feisworks/feispoints/internal/adapters/mq/worker"
	"github.com/feisworks/feispoints/internal/adapters/repository"
	"github.com/feisworks/feispoints/internal/domain/advance"
	"github.com/feisworks/feispoints/internal/domain/guard"
	"github.com/feisworks/feispoints/internal/domain/model"
	"github.com/feisworks/feispoints/internal/domain/recall"
	"github.com/feisworks/feispoints/internal/domain/scoring"
	"github.com/feisworks/feispoints/pkg/logger"
	"github.com/feisworks/feispoints/pkg/metrics"
)

// Service implements the scoring and advancement engine behind the API.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	calc      *scoring.Calculator
	selector  *recall.Selector
	evaluator *advance.Evaluator
	guard     guard.Guard
	jobs      jobqueue.Queue
	pool      *workerpool.Pool
	caster    broadcast.Broadcaster

	// Latest published pass per round, written by the worker pipeline.
	// Read queries still recompute from the raw score set; this is an
	// artifact for stats and observers, not an incremental path.
	published sync.Map // model.RoundID -> model.RoundResult

	// Configuration
	workerCount    int
	queueSize      int
	guardSize      int
	recallFraction float64
	tolerance      float64
	dropPanelSize  int
	rules          advance.Rules

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the persistence collaborator. Defaults to the
// in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithWorkerCount sets the number of recalculation workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the recalculation queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithGuardSize bounds the duplicate-suppression set.
func WithGuardSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.guardSize = size
		}
	}
}

// WithRules sets the advancement rule table.
func WithRules(rules advance.Rules) Option {
	return func(s *Service) {
		if rules != nil {
			s.rules = rules
		}
	}
}

// WithTolerance sets the tie-comparison epsilon.
func WithTolerance(eps float64) Option {
	return func(s *Service) {
		if eps > 0 {
			s.tolerance = eps
		}
	}
}

// WithRecallFraction sets the recall cutoff fraction.
func WithRecallFraction(f float64) Option {
	return func(s *Service) {
		if f > 0 && f <= 1 {
			s.recallFraction = f
		}
	}
}

// WithDropPanelSize sets the drop-high/low trigger count.
func WithDropPanelSize(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.dropPanelSize = n
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    0, // pool sizes itself from NumCPU
		queueSize:      10_000,
		guardSize:      100_000,
		recallFraction: 0.5,
		tolerance:      1e-6,
		dropPanelSize:  5,
		rules:          advance.Rules{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting scoring engine...")

	if s.store == nil {
		s.store = repository.NewMemStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	s.calc = scoring.New(
		scoring.WithTolerance(s.tolerance),
		scoring.WithDropPanelSize(s.dropPanelSize),
	)
	s.selector = recall.New(
		recall.WithFraction(s.recallFraction),
		recall.WithTolerance(s.tolerance),
	)
	s.evaluator = advance.New(s.rules)
	s.guard = guard.New(guard.WithMaxSize(s.guardSize))
	s.caster = broadcast.New(broadcast.WithLogger(s.logger))
	s.jobs = jobqueue.NewInMemoryQueue(
		jobqueue.WithCapacity(s.queueSize),
		jobqueue.WithBufferSize(s.queueSize),
	)

	s.pool = workerpool.NewPool(s.workerCount, s.jobs, s.store, s.calc, &resultSink{svc: s})
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "scoring engine started",
		logger.Int("queueSize", s.queueSize),
		logger.Int("rules", len(s.rules)),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping scoring engine...")

	if s.jobs != nil {
		_ = s.jobs.Close()
	}
	if s.pool != nil {
		_ = s.pool.Shutdown(ctx)
	}
	if s.caster != nil {
		_ = s.caster.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "scoring engine stopped")
}

// resultSink feeds worker output back into the service.
type resultSink struct {
	svc *Service
}

func (r *resultSink) Consume(_ context.Context, result model.RoundResult, _ workerpool.Job) error {
	r.svc.published.Store(result.RoundID, result)
	return nil
}

// SubmitScore validates and persists one judge's mark, enqueues a
// recalculation pass, and notifies observers. The broadcast is
// fire-and-forget: it can never block or fail the write.
func (s *Service) SubmitScore(ctx context.Context, score model.RawScore) error {
	if err := scoring.Validate(score.RoundID, []model.RawScore{score}); err != nil {
		switch {
		case errors.Is(err, scoring.ErrInvalidInput):
			metrics.RecordScoreRejected("invalid_input")
		case errors.Is(err, scoring.ErrConsistency):
			metrics.RecordScoreRejected("consistency")
		}
		return err
	}
	if score.RoundID == "" {
		metrics.RecordScoreRejected("invalid_input")
		return fmt.Errorf("%w: score missing round id", scoring.ErrInvalidInput)
	}

	if err := s.store.SaveRawScore(ctx, score); err != nil {
		return fmt.Errorf("persist score: %w", err)
	}
	metrics.RecordScoreAccepted()

	if !s.jobs.Enqueue(ctx, model.RecalcJob{RoundID: score.RoundID, EnqueuedAt: time.Now()}) {
		// The score is saved; reads recompute from the store, so a
		// full queue only delays the published artifact.
		s.logger.Warn(ctx, "recalc queue full; skipping pass",
			logger.String("round", string(score.RoundID)),
		)
	}

	s.caster.Publish(ctx, broadcast.ScoreChanged{
		RoundID:      score.RoundID,
		JudgeID:      score.JudgeID,
		CompetitorID: score.CompetitorID,
		Value:        score.Value,
		At:           time.Now(),
	})
	return nil
}

// CalculateRound recomputes a round's full ranked result from the raw
// score set as stored right now.
func (s *Service) CalculateRound(ctx context.Context, roundID model.RoundID) (model.RoundResult, error) {
	scores, err := s.store.RawScores(ctx, roundID)
	if err != nil {
		return model.RoundResult{}, fmt.Errorf("fetch raw scores: %w", err)
	}
	result, err := s.calc.CalculateRound(ctx, roundID, scores)
	if err != nil {
		return model.RoundResult{}, err
	}
	metrics.RecordCalculationPass()
	return result, nil
}

// CalculateRecall applies the recall cutoff to a set of ranked results.
func (s *Service) CalculateRecall(results []model.RankedResult) []model.CompetitorID {
	recalled := s.selector.Select(results)
	metrics.RecordRecallSelection(len(recalled))
	return recalled
}

// RecallForRound recomputes a round and applies the recall cutoff.
func (s *Service) RecallForRound(ctx context.Context, roundID model.RoundID) ([]model.CompetitorID, error) {
	result, err := s.CalculateRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	return s.CalculateRecall(result.Results), nil
}

// FinalizeRound computes a round's final result, persists one
// placement per entered dancer, and runs the advancement check for
// each of them. Entries maps competitor numbers to dancers; results
// for competitors without an entry are skipped.
func (s *Service) FinalizeRound(ctx context.Context, comp model.Competition, roundID model.RoundID, entries map[model.CompetitorID]model.Entry) (model.RoundResult, error) {
	result, err := s.CalculateRound(ctx, roundID)
	if err != nil {
		return model.RoundResult{}, err
	}

	for _, r := range result.Results {
		entry, ok := entries[r.CompetitorID]
		if !ok {
			continue
		}
		p := model.PlacementHistory{
			ID:              uuid.NewString(),
			DancerID:        entry.DancerID,
			CompetitionID:   comp.ID,
			FeisID:          comp.FeisID,
			EntryID:         entry.EntryID,
			Rank:            r.Rank,
			Points:          r.TotalPoints,
			DanceType:       comp.DanceType,
			Level:           comp.Level,
			CompetitionDate: comp.Date,
		}
		if err := s.store.SavePlacement(ctx, p); err != nil {
			return model.RoundResult{}, fmt.Errorf("persist placement for dancer %s: %w", entry.DancerID, err)
		}
	}

	for _, entry := range entries {
		dancer := model.Dancer{ID: entry.DancerID, CurrentLevel: comp.Level}
		if err := s.processAdvancement(ctx, dancer); err != nil {
			return model.RoundResult{}, err
		}
	}

	s.published.Store(roundID, result)
	return result, nil
}

// processAdvancement runs the advancement check for one dancer,
// serialized per dancer so racing finalizations cannot double-create a
// notice. The store's tuple uniqueness backstops the guard.
func (s *Service) processAdvancement(ctx context.Context, dancer model.Dancer) error {
	return s.guard.Do(string(dancer.ID), func() error {
		notices, err := s.CheckAdvancement(ctx, dancer)
		if err != nil {
			return err
		}
		for _, n := range notices {
			key := noticeGuardKey(n)
			if s.guard.SeenAndRecord(ctx, key) {
				metrics.RecordNoticeDuplicate()
				continue
			}
			if err := s.store.SaveNotice(ctx, n); err != nil {
				if errors.Is(err, repository.ErrDuplicateNotice) {
					metrics.RecordNoticeDuplicate()
					continue
				}
				s.guard.Unrecord(ctx, key)
				return fmt.Errorf("persist notice: %w", err)
			}
			metrics.RecordNoticeCreated()
			if n.TriggeringPlacementID != "" {
				if err := s.store.MarkPlacementAdvancement(ctx, n.TriggeringPlacementID); err != nil {
					s.logger.Warn(ctx, "could not flag triggering placement",
						logger.String("placement", n.TriggeringPlacementID),
						logger.Error(err),
					)
				}
			}
			s.logger.Info(ctx, "advancement notice created",
				logger.String("dancer", string(n.DancerID)),
				logger.String("from", string(n.FromLevel)),
				logger.String("to", string(n.ToLevel)),
				logger.String("dance", string(n.DanceType)),
			)
		}
		return nil
	})
}

// CheckAdvancement evaluates a dancer's history against the rule table
// and returns new, unpersisted notices.
func (s *Service) CheckAdvancement(ctx context.Context, dancer model.Dancer) ([]model.AdvancementNotice, error) {
	history, err := s.store.Placements(ctx, dancer.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch placement history: %w", err)
	}
	existing, err := s.store.Notices(ctx, dancer.ID, dancer.CurrentLevel)
	if err != nil {
		return nil, fmt.Errorf("fetch existing notices: %w", err)
	}
	return s.evaluator.Check(dancer, history, existing), nil
}

// AcknowledgeAdvancement closes a notice as accepted. Moving the
// dancer to the target level is the caller's transition to make.
func (s *Service) AcknowledgeAdvancement(ctx context.Context, id model.NoticeID, actorID string) (model.AdvancementNotice, error) {
	n, err := s.store.Notice(ctx, id)
	if err != nil {
		return model.AdvancementNotice{}, err
	}
	updated, err := advance.Acknowledge(n, actorID, time.Now())
	if err != nil {
		return model.AdvancementNotice{}, err
	}
	if err := s.store.UpdateNotice(ctx, updated); err != nil {
		return model.AdvancementNotice{}, fmt.Errorf("persist acknowledgment: %w", err)
	}
	metrics.RecordNoticeAcknowledged()
	return updated, nil
}

// OverrideAdvancement closes a notice as rejected, with an audit trail.
func (s *Service) OverrideAdvancement(ctx context.Context, id model.NoticeID, actorID, reason string) (model.AdvancementNotice, error) {
	n, err := s.store.Notice(ctx, id)
	if err != nil {
		return model.AdvancementNotice{}, err
	}
	updated, err := advance.Override(n, actorID, reason)
	if err != nil {
		return model.AdvancementNotice{}, err
	}
	if err := s.store.UpdateNotice(ctx, updated); err != nil {
		return model.AdvancementNotice{}, fmt.Errorf("persist override: %w", err)
	}
	metrics.RecordNoticeOverridden()
	return updated, nil
}

// CheckRegistrationEligibility reports whether a dancer may register
// for a competition, and why not when blocked.
func (s *Service) CheckRegistrationEligibility(ctx context.Context, dancer model.Dancer, comp model.Competition) (bool, string, error) {
	notices, err := s.store.Notices(ctx, dancer.ID, comp.Level)
	if err != nil {
		return false, "", fmt.Errorf("fetch notices: %w", err)
	}
	ok, msg := advance.Eligible(dancer, comp, notices)
	if !ok {
		metrics.RecordEligibilityBlock()
	}
	return ok, msg, nil
}

// PendingNotices returns a dancer's open notices: created, not yet
// acknowledged or overridden.
func (s *Service) PendingNotices(ctx context.Context, dancerID model.DancerID) ([]model.AdvancementNotice, error) {
	all, err := s.store.NoticesForDancer(ctx, dancerID)
	if err != nil {
		return nil, fmt.Errorf("fetch notices: %w", err)
	}
	pending := make([]model.AdvancementNotice, 0, len(all))
	for _, n := range all {
		if n.Open() {
			pending = append(pending, n)
		}
	}
	return pending, nil
}

// Subscribe registers a score-change observer.
func (s *Service) Subscribe(ctx context.Context, name string) (<-chan broadcast.ScoreChanged, func()) {
	return s.caster.Subscribe(ctx, name)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"queueSize":      s.queueSize,
		"recallFraction": s.recallFraction,
		"rules":          len(s.rules),
	}
	if s.started {
		stats["queueLength"] = s.jobs.Len(context.Background())
		stats["guardEntries"] = s.guard.Size()

		published := 0
		s.published.Range(func(_, _ any) bool {
			published++
			return true
		})
		stats["publishedRounds"] = published
	}
	return stats
}

func noticeGuardKey(n model.AdvancementNotice) string {
	return string(n.DancerID) + "|" + string(n.FromLevel) + "|" + string(n.DanceType)
}
