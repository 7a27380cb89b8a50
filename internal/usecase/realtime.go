package usecase

import (
	"sync"
	"time"

	"TradeGate/internal/domain/models"
)

// Candidate is one realtime execution candidate waiting in the debounce
// window.
type Candidate struct {
	Broker        string
	Pair          string
	Signal        *models.Signal
	ShouldExecute *bool
	EnqueuedAt    time.Time
}

func (c *Candidate) key() string { return c.Broker + "|" + c.Pair }

// realtimeQueue batches near-simultaneous pushed signals: duplicates per
// (broker,pair) collapse to the highest decision score, and a one-shot
// debounce timer flushes the accumulated set through flushFn.
type realtimeQueue struct {
	mu       sync.Mutex
	pending  map[string]*Candidate
	timer    *time.Timer
	debounce time.Duration
	flushFn  func([]*Candidate)
}

func newRealtimeQueue(debounce time.Duration, flushFn func([]*Candidate)) *realtimeQueue {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &realtimeQueue{
		pending:  make(map[string]*Candidate),
		debounce: debounce,
		flushFn:  flushFn,
	}
}

// Offer enqueues a candidate, keeping only the strongest per (broker,
// pair), and arms the debounce timer if it is not already running.
func (q *realtimeQueue) Offer(c *Candidate) {
	if c == nil || c.Signal == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	key := c.key()
	if existing, ok := q.pending[key]; ok {
		if c.Signal.DecisionScore() <= existing.Signal.DecisionScore() {
			return
		}
	}
	q.pending[key] = c

	if q.timer == nil {
		q.timer = time.AfterFunc(q.debounce, q.flush)
	}
}

// flush drains the pending set and hands it to flushFn. The timer is
// one-shot and self-clearing.
func (q *realtimeQueue) flush() {
	q.mu.Lock()
	batch := make([]*Candidate, 0, len(q.pending))
	for _, c := range q.pending {
		batch = append(batch, c)
	}
	q.pending = make(map[string]*Candidate)
	q.timer = nil
	q.mu.Unlock()

	if len(batch) > 0 {
		q.flushFn(batch)
	}
}

// Stop cancels a pending flush without draining.
func (q *realtimeQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.pending = make(map[string]*Candidate)
}

// Len reports the number of pending candidates.
func (q *realtimeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
