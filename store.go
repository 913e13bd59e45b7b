package main

import (
	"sync"
	"time"
)

// EmptyMatchGrace is how long an empty match survives before deletion; a
// rejoin within the window cancels it.
const EmptyMatchGrace = 30 * time.Second

// MatchStore maps match identifiers to match records. It is the only
// structure touched by more than one match's control flow.
type MatchStore struct {
	mu      sync.RWMutex
	matches map[string]*Match
}

// NewMatchStore creates an empty store
func NewMatchStore() *MatchStore {
	return &MatchStore{matches: make(map[string]*Match)}
}

// GetOrCreate returns the match for the given id, creating it on first
// reference. Idempotent; creation is logged only once.
func (s *MatchStore) GetOrCreate(id string) *Match {
	s.mu.RLock()
	m := s.matches[id]
	s.mu.RUnlock()
	if m != nil {
		return m
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.matches[id]; m != nil {
		return m
	}
	m = NewMatch(id, s)
	s.matches[id] = m
	Log.Infow("match created", "match", id)
	return m
}

// Get returns the match for the given id, or nil
func (s *MatchStore) Get(id string) *Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matches[id]
}

// Delete removes a match from the store and halts its tick loop
func (s *MatchStore) Delete(id string) {
	s.mu.Lock()
	m := s.matches[id]
	delete(s.matches, id)
	s.mu.Unlock()
	if m != nil {
		m.mu.Lock()
		m.stopLoop()
		m.mu.Unlock()
		Log.Infow("match deleted", "match", id)
	}
}

// Count returns the number of live matches
func (s *MatchStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matches)
}

// List returns info about all live matches
func (s *MatchStore) List() []MatchInfo {
	s.mu.RLock()
	matches := make([]*Match, 0, len(s.matches))
	for _, m := range s.matches {
		matches = append(matches, m)
	}
	s.mu.RUnlock()

	list := make([]MatchInfo, 0, len(matches))
	for _, m := range matches {
		st := m.State()
		list = append(list, MatchInfo{
			ID:      m.ID,
			Players: m.PlayerCount(),
			Playing: st.IsPlaying,
		})
	}
	return list
}

// scheduleCleanup arms the empty-match deletion timer. The generation guard
// re-validates on firing that the match is still empty and unchanged, so a
// rejoin during the grace window keeps the match alive.
func (s *MatchStore) scheduleCleanup(m *Match, gen uint64) {
	time.AfterFunc(EmptyMatchGrace, func() {
		s.cleanupIfEmpty(m, gen)
	})
}

// cleanupIfEmpty performs the deferred deletion if its precondition still holds
func (s *MatchStore) cleanupIfEmpty(m *Match, gen uint64) {
	m.mu.Lock()
	stale := m.gen != gen || m.playerCount() > 0
	m.mu.Unlock()
	if stale {
		return
	}
	s.Delete(m.ID)
}
