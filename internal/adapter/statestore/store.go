package statestore

import (
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/berfenger/energyopt2mqtt/internal/core/domain"
	"github.com/berfenger/energyopt2mqtt/internal/core/port"
)

var _ port.StateLookup = (*Store)(nil)

// Store caches the latest known state of every entity fed to the bridge.
// It is safe for concurrent use; readers get copies.
type Store struct {
	mu     sync.RWMutex
	states map[string]domain.EntityState
	clock  func() time.Time
}

func New() *Store {
	return &Store{states: make(map[string]domain.EntityState), clock: time.Now}
}

func (s *Store) Lookup(entityId string) (domain.EntityState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[entityId]
	if !ok {
		return domain.EntityState{}, false
	}
	return cloneState(st), true
}

// Set replaces the whole entity state.
func (s *Store) Set(state domain.EntityState) domain.EntityState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state.LastUpdated.IsZero() {
		state.LastUpdated = s.clock()
	}
	state = cloneState(state)
	s.states[state.EntityId] = state
	return cloneState(state)
}

// SetState updates the primary state and keeps existing attributes.
func (s *Store) SetState(entityId string, value string) domain.EntityState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[entityId]
	st.EntityId = entityId
	st.State = value
	st.LastUpdated = s.clock()
	s.states[entityId] = st
	return cloneState(st)
}

// SetAttributes merges attrs into the entity, or replaces them all when replace is set.
func (s *Store) SetAttributes(entityId string, attrs map[string]any, replace bool) domain.EntityState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[entityId]
	st.EntityId = entityId
	if replace || st.Attributes == nil {
		st.Attributes = make(map[string]any, len(attrs))
	} else {
		st.Attributes = maps.Clone(st.Attributes)
	}
	maps.Copy(st.Attributes, attrs)
	st.LastUpdated = s.clock()
	s.states[entityId] = st
	return cloneState(st)
}

func (s *Store) Delete(entityId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.states[entityId]
	delete(s.states, entityId)
	return ok
}

// All returns every cached entity sorted by id.
func (s *Store) All() []domain.EntityState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]domain.EntityState, 0, len(s.states))
	for _, st := range s.states {
		all = append(all, cloneState(st))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].EntityId < all[j].EntityId })
	return all
}

func cloneState(st domain.EntityState) domain.EntityState {
	if st.Attributes != nil {
		st.Attributes = maps.Clone(st.Attributes)
	}
	return st
}
