package usecase

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeGate/internal/domain/models"
)

func scoredCandidate(broker, pair string, score float64) *Candidate {
	return &Candidate{
		Broker: broker,
		Pair:   pair,
		Signal: &models.Signal{
			Pair:     pair,
			Validity: models.Validity{Decision: models.Decision{Score: score}},
		},
	}
}

func collectFlush() (func([]*Candidate), func() [][]*Candidate) {
	var mu sync.Mutex
	var batches [][]*Candidate
	flush := func(batch []*Candidate) {
		mu.Lock()
		batches = append(batches, batch)
		mu.Unlock()
	}
	read := func() [][]*Candidate {
		mu.Lock()
		defer mu.Unlock()
		return batches
	}
	return flush, read
}

func TestRealtimeQueueCollapsesToHighestScore(t *testing.T) {
	flush, read := collectFlush()
	q := newRealtimeQueue(20*time.Millisecond, flush)
	defer q.Stop()

	q.Offer(scoredCandidate("bridge-a", "EURUSD", 60))
	q.Offer(scoredCandidate("bridge-a", "EURUSD", 80))
	q.Offer(scoredCandidate("bridge-a", "EURUSD", 70)) // weaker, dropped
	assert.Equal(t, 1, q.Len())

	assert.Eventually(t, func() bool { return len(read()) == 1 }, time.Second, 5*time.Millisecond)

	batch := read()[0]
	require.Len(t, batch, 1)
	assert.InDelta(t, 80, batch[0].Signal.DecisionScore(), 1e-9)
	assert.Equal(t, 0, q.Len())
}

func TestRealtimeQueueKeysByBrokerAndPair(t *testing.T) {
	flush, read := collectFlush()
	q := newRealtimeQueue(20*time.Millisecond, flush)
	defer q.Stop()

	q.Offer(scoredCandidate("bridge-a", "EURUSD", 60))
	q.Offer(scoredCandidate("bridge-b", "EURUSD", 60))
	q.Offer(scoredCandidate("bridge-a", "GBPUSD", 60))
	assert.Equal(t, 3, q.Len())

	assert.Eventually(t, func() bool { return len(read()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, read()[0], 3)
}

func TestRealtimeQueueIgnoresEmptyCandidates(t *testing.T) {
	flush, _ := collectFlush()
	q := newRealtimeQueue(20*time.Millisecond, flush)
	defer q.Stop()

	q.Offer(nil)
	q.Offer(&Candidate{Broker: "bridge-a", Pair: "EURUSD"})
	assert.Equal(t, 0, q.Len())
}

func TestRealtimeQueueStopCancelsPendingFlush(t *testing.T) {
	flush, read := collectFlush()
	q := newRealtimeQueue(20*time.Millisecond, flush)

	q.Offer(scoredCandidate("bridge-a", "EURUSD", 60))
	q.Stop()
	assert.Equal(t, 0, q.Len())

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, read())
}

func TestRealtimeQueueRearmsAfterFlush(t *testing.T) {
	flush, read := collectFlush()
	q := newRealtimeQueue(10*time.Millisecond, flush)
	defer q.Stop()

	q.Offer(scoredCandidate("bridge-a", "EURUSD", 60))
	assert.Eventually(t, func() bool { return len(read()) == 1 }, time.Second, 2*time.Millisecond)

	q.Offer(scoredCandidate("bridge-a", "EURUSD", 65))
	assert.Eventually(t, func() bool { return len(read()) == 2 }, time.Second, 2*time.Millisecond)
}
