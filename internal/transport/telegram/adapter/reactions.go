package adapter

import (
	"time"

	kit "vexbot/internal/transport"
)

const (
	defaultReactionSets   = 1024
	defaultReactionSetTTL = time.Hour
)

// reactionSets remembers the vote buttons already on recent messages so
// React can rebuild the keyboard. Buttons are only added right after a
// send, so old entries are dropped oldest first once the set is full or
// past its ttl. Not safe for concurrent use.
type reactionSets struct {
	limit int
	ttl   time.Duration
	now   func() time.Time

	m     map[kit.MessageRef]reactionEntry
	order []kit.MessageRef // oldest first, one slot per key in m
}

type reactionEntry struct {
	emojis []string
	exp    time.Time
}

func newReactionSets(limit int, ttl time.Duration) *reactionSets {
	return &reactionSets{limit: limit, ttl: ttl, now: time.Now, m: map[kit.MessageRef]reactionEntry{}}
}

func (s *reactionSets) get(ref kit.MessageRef) []string {
	e, ok := s.m[ref]
	if !ok || s.now().After(e.exp) {
		return nil
	}
	return e.emojis
}

func (s *reactionSets) put(ref kit.MessageRef, emojis []string) {
	if _, ok := s.m[ref]; !ok {
		s.order = append(s.order, ref)
	}
	s.m[ref] = reactionEntry{emojis: emojis, exp: s.now().Add(s.ttl)}
	s.evict()
}

func (s *reactionSets) evict() {
	now := s.now()
	n := 0
	for n < len(s.order) {
		oldest := s.order[n]
		if len(s.m) <= s.limit && !now.After(s.m[oldest].exp) {
			break
		}
		delete(s.m, oldest)
		n++
	}
	if n > 0 {
		s.order = append(s.order[:0:0], s.order[n:]...)
	}
}

func (s *reactionSets) size() int { return len(s.m) }
