package session

import (
	"context"
	"strings"
	"sync"
)

// finalQueue holds finalized transcripts waiting to start a turn. The
// recognizer may split one spoken utterance into several finals; whatever
// has queued up by the time a reply's first audio would become audible is
// merged into the current turn instead of starting new ones.
type finalQueue struct {
	mu    sync.Mutex
	items []string
	wake  chan struct{}
}

func newFinalQueue() *finalQueue {
	return &finalQueue{wake: make(chan struct{}, 1)}
}

func (q *finalQueue) Push(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, text)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pop blocks until a final transcript is available or ctx ends.
func (q *finalQueue) Pop(ctx context.Context) (string, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			t := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return t, true
		}
		q.mu.Unlock()
		select {
		case <-q.wake:
		case <-ctx.Done():
			return "", false
		}
	}
}

func (q *finalQueue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) > 0
}

// Drain removes and returns everything queued without blocking.
func (q *finalQueue) Drain() []string {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}
