package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/feisworks/feispoints/internal/domain/model"
	"github.com/feisworks/feispoints/pkg/metrics"
)

type scoreKey struct {
	round      model.RoundID
	judge      model.JudgeID
	competitor model.CompetitorID
}

// placementRef locates a placement inside the per-dancer slice;
// appends may reallocate, so an index is held rather than a pointer.
type placementRef struct {
	dancer model.DancerID
	idx    int
}

type placementKey struct {
	dancer model.DancerID
	comp   model.CompetitionID
}

type noticeKey struct {
	dancer model.DancerID
	level  model.Level
	dance  model.DanceType
}

// MemStore implements Store with mutex-guarded maps. It is the default
// store and the one tests run against.
type MemStore struct {
	mu         sync.RWMutex
	scores     map[scoreKey]model.RawScore
	scoreOrder map[model.RoundID][]scoreKey // insertion order per round
	placements map[model.DancerID][]model.PlacementHistory
	byPlaceID  map[string]placementRef
	placeKeys  map[placementKey]string // (dancer, competition) -> placement ID
	notices    map[model.NoticeID]model.AdvancementNotice
	noticeKeys map[noticeKey]model.NoticeID
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		scores:     make(map[scoreKey]model.RawScore),
		scoreOrder: make(map[model.RoundID][]scoreKey),
		placements: make(map[model.DancerID][]model.PlacementHistory),
		byPlaceID:  make(map[string]placementRef),
		placeKeys:  make(map[placementKey]string),
		notices:    make(map[model.NoticeID]model.AdvancementNotice),
		noticeKeys: make(map[noticeKey]model.NoticeID),
	}
}

// SaveRawScore upserts a judge's mark; last write wins.
func (m *MemStore) SaveRawScore(_ context.Context, score model.RawScore) error {
	start := time.Now()
	defer func() { metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds())) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	key := scoreKey{round: score.RoundID, judge: score.JudgeID, competitor: score.CompetitorID}
	if _, exists := m.scores[key]; !exists {
		m.scoreOrder[score.RoundID] = append(m.scoreOrder[score.RoundID], key)
	}
	m.scores[key] = score
	return nil
}

// RawScores returns all scores for a round in submission order.
func (m *MemStore) RawScores(_ context.Context, roundID model.RoundID) ([]model.RawScore, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds())) }()

	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := m.scoreOrder[roundID]
	out := make([]model.RawScore, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.scores[k])
	}
	return out, nil
}

// SavePlacement upserts one placement record per (dancer, competition).
// Re-finalizing a round refreshes the result fields of the existing
// record; its ID and advancement flag are kept so notices that reference
// it stay valid.
func (m *MemStore) SavePlacement(_ context.Context, p model.PlacementHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := placementKey{dancer: p.DancerID, comp: p.CompetitionID}
	if id, exists := m.placeKeys[key]; exists {
		ref := m.byPlaceID[id]
		prev := m.placements[ref.dancer][ref.idx]
		p.ID = prev.ID
		p.TriggeredAdvancement = prev.TriggeredAdvancement
		m.placements[ref.dancer][ref.idx] = p
		return nil
	}

	m.placements[p.DancerID] = append(m.placements[p.DancerID], p)
	m.byPlaceID[p.ID] = placementRef{dancer: p.DancerID, idx: len(m.placements[p.DancerID]) - 1}
	m.placeKeys[key] = p.ID
	return nil
}

// Placements returns a dancer's placement history.
func (m *MemStore) Placements(_ context.Context, dancerID model.DancerID) ([]model.PlacementHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.PlacementHistory, len(m.placements[dancerID]))
	copy(out, m.placements[dancerID])
	return out, nil
}

// MarkPlacementAdvancement flags a placement record.
func (m *MemStore) MarkPlacementAdvancement(_ context.Context, placementID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref, ok := m.byPlaceID[placementID]
	if !ok {
		return fmt.Errorf("%w: placement %s", ErrNotFound, placementID)
	}
	m.placements[ref.dancer][ref.idx].TriggeredAdvancement = true
	return nil
}

// SaveNotice persists a new notice, enforcing the one-per-tuple
// constraint that backstops the duplicate-creation race.
func (m *MemStore) SaveNotice(_ context.Context, n model.AdvancementNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := noticeKey{dancer: n.DancerID, level: n.FromLevel, dance: n.DanceType}
	if _, exists := m.noticeKeys[key]; exists {
		return fmt.Errorf("%w: dancer %s level %s", ErrDuplicateNotice, n.DancerID, n.FromLevel)
	}
	m.notices[n.ID] = n
	m.noticeKeys[key] = n.ID
	return nil
}

// Notice returns a notice by id.
func (m *MemStore) Notice(_ context.Context, id model.NoticeID) (model.AdvancementNotice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.notices[id]
	if !ok {
		return model.AdvancementNotice{}, fmt.Errorf("%w: notice %s", ErrNotFound, id)
	}
	return n, nil
}

// Notices returns a dancer's notices at one level.
func (m *MemStore) Notices(_ context.Context, dancerID model.DancerID, level model.Level) ([]model.AdvancementNotice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.AdvancementNotice
	for _, n := range m.notices {
		if n.DancerID == dancerID && n.FromLevel == level {
			out = append(out, n)
		}
	}
	return out, nil
}

// NoticesForDancer returns all of a dancer's notices.
func (m *MemStore) NoticesForDancer(_ context.Context, dancerID model.DancerID) ([]model.AdvancementNotice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.AdvancementNotice
	for _, n := range m.notices {
		if n.DancerID == dancerID {
			out = append(out, n)
		}
	}
	return out, nil
}

// UpdateNotice replaces a persisted notice.
func (m *MemStore) UpdateNotice(_ context.Context, n model.AdvancementNotice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.notices[n.ID]; !ok {
		return fmt.Errorf("%w: notice %s", ErrNotFound, n.ID)
	}
	m.notices[n.ID] = n
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}
