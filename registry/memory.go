package registry

import (
	"sort"
	"sync"
	"time"
)

// entry pairs a card with its liveness record.
type entry struct {
	card     AgentCard
	lastSeen time.Time
}

// MemoryStore is the in-memory implementation of Store. It is the only
// implementation: nothing is persisted and nothing outlives the process.
type MemoryStore struct {
	mu       sync.RWMutex
	agents   map[string]entry
	watchers []chan Event
	closed   bool

	// now is swappable for tests.
	now func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents: make(map[string]entry),
		now:    time.Now,
	}
}

// Register inserts or replaces the card for card.URL. Last write wins;
// duplicate registration is not an error.
func (s *MemoryStore) Register(card AgentCard) error {
	if err := ValidateCard(card); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	_, exists := s.agents[card.URL]
	s.agents[card.URL] = entry{card: card, lastSeen: s.now()}

	eventType := EventRegistered
	if exists {
		eventType = EventUpdated
	}
	s.notifyWatchers(Event{Type: eventType, Card: card})

	return nil
}

// Unregister removes the entry for url. Absent urls are a no-op.
func (s *MemoryStore) Unregister(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	e, exists := s.agents[url]
	if !exists {
		return nil
	}

	delete(s.agents, url)
	s.notifyWatchers(Event{Type: EventUnregistered, Card: e.card})

	return nil
}

// Get returns the card for url.
func (s *MemoryStore) Get(url string) (*AgentCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	e, exists := s.agents[url]
	if !exists {
		return nil, ErrNotFound
	}

	card := e.card
	return &card, nil
}

// List returns all registered cards, sorted by URL for consistent ordering.
func (s *MemoryStore) List() ([]AgentCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	result := make([]AgentCard, 0, len(s.agents))
	for _, e := range s.agents {
		result = append(result, e.card)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].URL < result[j].URL
	})

	return result, nil
}

// Touch refreshes the last-seen timestamp for url.
func (s *MemoryStore) Touch(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	e, exists := s.agents[url]
	if !exists {
		return ErrNotFound
	}

	e.lastSeen = s.now()
	s.agents[url] = e

	return nil
}

// Snapshot returns a copy of the url -> last-seen mapping.
func (s *MemoryStore) Snapshot() (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	snap := make(map[string]time.Time, len(s.agents))
	for url, e := range s.agents {
		snap[url] = e.lastSeen
	}

	return snap, nil
}

// evictIfStale removes url only if its last-seen timestamp is still at or
// before cutoff. A heartbeat arriving between a sweep's snapshot and its
// eviction step keeps the agent registered.
func (s *MemoryStore) evictIfStale(url string, cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	e, exists := s.agents[url]
	if !exists || e.lastSeen.After(cutoff) {
		return false
	}

	delete(s.agents, url)
	s.notifyWatchers(Event{Type: EventEvicted, Card: e.card})

	return true
}

// Watch returns a channel of registry events.
func (s *MemoryStore) Watch() (<-chan Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	ch := make(chan Event, 64)
	s.watchers = append(s.watchers, ch)

	return ch, nil
}

// Close shuts down the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	for _, ch := range s.watchers {
		close(ch)
	}
	s.watchers = nil

	return nil
}

// notifyWatchers sends an event to all watchers.
// Must be called with lock held.
func (s *MemoryStore) notifyWatchers(event Event) {
	for _, ch := range s.watchers {
		select {
		case ch <- event:
		default:
			// Buffer full, skip
		}
	}
}
