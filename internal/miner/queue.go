// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package miner

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// topicQueue is the shared work queue. Workers pop with a bounded wait; a
// worker that finds the queue empty after waiting refills it with perturbed
// variants of the base topic list instead of idling, so the pool never
// starves when external topics run out.
type topicQueue struct {
	mu    sync.Mutex
	items []string
	base  []string
	rng   *rand.Rand
	rngMu sync.Mutex
}

var topicModifiers = []string{
	"github gist",
	"tutorial",
	"examples",
	"cheat sheet",
	"stackoverflow",
}

func newTopicQueue(base []string) *topicQueue {
	q := &topicQueue{
		base: append([]string(nil), base...),
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	q.items = append(q.items, base...)
	return q
}

// Pop returns the next topic, waiting up to wait for one to appear before
// refilling the queue itself. It returns an error only when ctx is done.
func (q *topicQueue) Pop(ctx context.Context, wait time.Duration) (string, error) {
	deadline := time.Now().Add(wait)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		q.mu.Lock()
		if len(q.items) > 0 {
			topic := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return topic, nil
		}
		q.mu.Unlock()

		if time.Now().After(deadline) {
			if topic := q.perturb(); topic != "" {
				q.Push(topic)
				continue
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Push appends a topic to the queue.
func (q *topicQueue) Push(topic string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, topic)
}

// perturb manufactures a fresh topic from the base list and a random
// modifier, so repeated refills do not replay identical searches. It returns
// the empty string when there is no base list to draw from, in which case
// Pop keeps waiting for pushed topics instead of refilling.
func (q *topicQueue) perturb() string {
	q.rngMu.Lock()
	defer q.rngMu.Unlock()

	if len(q.base) == 0 {
		return ""
	}

	topic := q.base[q.rng.Intn(len(q.base))]
	modifier := topicModifiers[q.rng.Intn(len(topicModifiers))]

	if strings.Contains(topic, modifier) {
		return topic
	}
	return topic + " " + modifier
}

// seenSet tracks URLs already visited this run so no worker fetches the
// same page twice.
type seenSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

func newSeenSet() *seenSet {
	return &seenSet{urls: make(map[string]struct{})}
}

// MarkSeen records u and reports whether it was new.
func (s *seenSet) MarkSeen(u string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.urls[u]; ok {
		return false
	}
	s.urls[u] = struct{}{}
	return true
}

// Len returns the number of distinct URLs seen.
func (s *seenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}
