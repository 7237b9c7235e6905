// ABOUTME: Bounded TTL set of Matrix event IDs already handled
// ABOUTME: Stops sync retries and decrypted re-dispatches from running a prompt twice

package matrix

import (
	"container/list"
	"sync"
	"time"

	"maunium.net/go/mautrix/id"
)

const (
	seenTTL     = 10 * time.Minute
	seenMaxSize = 4096
)

type seenEntry struct {
	at   time.Time
	elem *list.Element
}

// seenEvents remembers event IDs for ttl, evicting the oldest beyond maxSize.
// Expired entries are dropped lazily on insert.
type seenEvents struct {
	mu      sync.Mutex
	entries map[id.EventID]*seenEntry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func newSeenEvents(ttl time.Duration, maxSize int) *seenEvents {
	return &seenEvents{
		entries: make(map[id.EventID]*seenEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// markNew records eventID and reports whether it had not been seen within ttl.
func (s *seenEvents) markNew(eventID id.EventID) bool {
	if eventID == "" {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expire(now)

	if e, ok := s.entries[eventID]; ok {
		e.at = now
		s.order.MoveToBack(e.elem)
		return false
	}
	if len(s.entries) >= s.maxSize {
		s.evict(s.order.Front())
	}
	s.entries[eventID] = &seenEntry{at: now, elem: s.order.PushBack(eventID)}
	return true
}

func (s *seenEvents) expire(now time.Time) {
	for front := s.order.Front(); front != nil; front = s.order.Front() {
		eventID := front.Value.(id.EventID)
		if now.Sub(s.entries[eventID].at) < s.ttl {
			return
		}
		s.evict(front)
	}
}

func (s *seenEvents) evict(elem *list.Element) {
	if elem == nil {
		return
	}
	s.order.Remove(elem)
	delete(s.entries, elem.Value.(id.EventID))
}

func (s *seenEvents) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
