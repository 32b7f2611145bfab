// Package ammo owns the tranche-used flags. Flags are only set by applying a
// FIRE_AMMO recommendation and only cleared by an explicit reset.
package ammo

import (
	"context"
	"fmt"
	"sync"

	"DrawdownSentinel/internal/metrics"
	"DrawdownSentinel/internal/model"

	"github.com/rs/zerolog"
)

// Repository reads and writes ammo rows.
type Repository interface {
	GetAmmoState(ctx context.Context, userID string) (model.AmmoState, error)
	UpsertAmmoState(ctx context.Context, a model.AmmoState) (model.AmmoState, error)
}

// Transition returns the state after applying a recommendation of type t.
// Only FIRE_AMMO_k touches the state, and only flag k. changed is false when
// the flag was already set, so applying the same result twice is a no-op.
func Transition(a model.AmmoState, t model.RecommendationType) (next model.AmmoState, changed bool) {
	k := t.Tranche()
	if k == 0 || a.Used(k) {
		return a, false
	}
	return a.WithUsed(k), true
}

// Manager serializes ammo reads and writes per user.
type Manager struct {
	repo    Repository
	metrics *metrics.Registry
	log     zerolog.Logger

	mu    sync.Mutex
	locks map[string]*userLock
}

// userLock is dropped from the map once nobody holds or waits on it.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a Manager over repo.
func NewManager(repo Repository, reg *metrics.Registry, log zerolog.Logger) *Manager {
	return &Manager{
		repo:    repo,
		metrics: reg,
		log:     log.With().Str("component", "ammo").Logger(),
		locks:   make(map[string]*userLock),
	}
}

// Lock acquires the per-user lock and returns its release func. Callers doing a
// read-evaluate-write cycle hold it for the whole cycle so two evaluations can't
// fire the same tranche from a stale read.
func (m *Manager) Lock(userID string) (unlock func()) {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, userID)
		}
		m.mu.Unlock()
	}
}

func (m *Manager) lockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// Get returns the current flags.
func (m *Manager) Get(ctx context.Context, userID string) (model.AmmoState, error) {
	return m.repo.GetAmmoState(ctx, userID)
}

// Apply persists the transition for t through repo, which is usually a
// transaction-bound store. The caller must hold Lock(userID).
func (m *Manager) Apply(ctx context.Context, repo Repository, userID string, t model.RecommendationType) (model.AmmoState, bool, error) {
	if repo == nil {
		repo = m.repo
	}
	cur, err := repo.GetAmmoState(ctx, userID)
	if err != nil {
		return model.AmmoState{}, false, fmt.Errorf("load ammo: %w", err)
	}
	next, changed := Transition(cur, t)
	if !changed {
		return cur, false, nil
	}
	next.UserID = userID
	saved, err := repo.UpsertAmmoState(ctx, next)
	if err != nil {
		return model.AmmoState{}, false, fmt.Errorf("save ammo: %w", err)
	}
	m.metrics.ObserveAmmo(fmt.Sprintf("fire_%d", t.Tranche()))
	m.log.Info().Str("user_id", userID).Int("tranche", t.Tranche()).Msg("tranche marked used")
	return saved, true, nil
}

// Reset clears all three flags. It is the only way a used tranche becomes ready again.
func (m *Manager) Reset(ctx context.Context, userID string) (model.AmmoState, error) {
	unlock := m.Lock(userID)
	defer unlock()

	saved, err := m.repo.UpsertAmmoState(ctx, model.AmmoState{UserID: userID})
	if err != nil {
		return model.AmmoState{}, fmt.Errorf("reset ammo: %w", err)
	}
	m.metrics.ObserveAmmo("reset")
	m.log.Info().Str("user_id", userID).Msg("ammo reset")
	return saved, nil
}
