package main

import "testing"

func TestGetOrCreateIdempotent(t *testing.T) {
	s := NewMatchStore()

	m1 := s.GetOrCreate("abc")
	m2 := s.GetOrCreate("abc")
	if m1 != m2 {
		t.Error("same id should return the same match")
	}
	if s.Count() != 1 {
		t.Errorf("expected 1 match, got %d", s.Count())
	}
	if s.Get("abc") != m1 {
		t.Error("Get should find the created match")
	}
	if s.Get("missing") != nil {
		t.Error("Get for unknown id should return nil")
	}
}

func TestDelete(t *testing.T) {
	s := NewMatchStore()
	s.GetOrCreate("abc")
	s.Delete("abc")
	if s.Get("abc") != nil {
		t.Error("deleted match should be gone")
	}
	s.Delete("abc") // deleting twice is harmless
}

func TestCleanupIfEmptyGuards(t *testing.T) {
	s := NewMatchStore()
	m := s.GetOrCreate("abc")
	m.Join(&mockBroadcaster{})

	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	// Not empty: deferred deletion must re-validate and back off
	s.cleanupIfEmpty(m, gen)
	if s.Get("abc") == nil {
		t.Fatal("occupied match was deleted")
	}

	m.Leave(1)
	m.mu.Lock()
	gen = m.gen
	m.mu.Unlock()

	// Stale generation (e.g. a rejoin bumped it since scheduling)
	s.cleanupIfEmpty(m, gen-1)
	if s.Get("abc") == nil {
		t.Fatal("stale-generation cleanup deleted the match")
	}

	// Current generation and still empty: delete
	s.cleanupIfEmpty(m, gen)
	if s.Get("abc") != nil {
		t.Error("empty match should be deleted")
	}
}

func TestRejoinCancelsCleanup(t *testing.T) {
	s := NewMatchStore()
	m := s.GetOrCreate("abc")
	m.Join(&mockBroadcaster{})
	m.Leave(1)

	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	// A rejoin during the grace window bumps the generation
	m.Join(&mockBroadcaster{})
	s.cleanupIfEmpty(m, gen)
	if s.Get("abc") == nil {
		t.Error("rejoined match should survive the scheduled cleanup")
	}
}

func TestListMatches(t *testing.T) {
	s := NewMatchStore()
	m := s.GetOrCreate("one")
	m.Join(&mockBroadcaster{})
	s.GetOrCreate("two")

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(list))
	}
	byID := make(map[string]MatchInfo)
	for _, info := range list {
		byID[info.ID] = info
	}
	if byID["one"].Players != 1 || byID["two"].Players != 0 {
		t.Errorf("player counts wrong: %+v", list)
	}
}
