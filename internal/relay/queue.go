package relay

import (
	"fmt"
	"sync"

	"github.com/grakai/pitchside/internal/model"
)

type item struct {
	percentage int
	end        bool
}

// queue is the ordered handoff between the worker goroutine and the drain goroutine.
type queue struct {
	ch chan item
	// stop is closed when the drain goroutine exits, pushes after that are dropped.
	stop chan struct{}

	mu       sync.Mutex
	ended    bool
	stopped  bool
	firstErr error
	onError  func(error)
}

func newQueue(size int, onError func(error)) *queue {
	return &queue{
		ch:      make(chan item, size),
		stop:    make(chan struct{}),
		onError: onError,
	}
}

// push enqueues a progress value. It blocks while the queue is full.
func (q *queue) push(percentage int) {
	q.mu.Lock()
	var err error
	switch {
	case q.ended:
		err = fmt.Errorf("progress %d reported after the end marker: %w", percentage, model.ErrRelayProtocol)
	case percentage < 0 || percentage > 100:
		err = fmt.Errorf("progress %d out of range [0, 100]: %w", percentage, model.ErrRelayProtocol)
	}
	if err != nil {
		q.failLocked(err)
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()

	select {
	case q.ch <- item{percentage: percentage}:
	case <-q.stop:
	}
}

// end enqueues the end marker, it can only be called once.
func (q *queue) end() error {
	q.mu.Lock()
	if q.ended {
		err := fmt.Errorf("duplicate end marker: %w", model.ErrRelayProtocol)
		q.failLocked(err)
		q.mu.Unlock()
		return err
	}
	q.ended = true
	q.mu.Unlock()

	select {
	case q.ch <- item{end: true}:
	case <-q.stop:
	}
	return nil
}

// close marks the drain side as gone.
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.stopped {
		q.stopped = true
		close(q.stop)
	}
}

func (q *queue) err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.firstErr
}

func (q *queue) failLocked(err error) {
	if q.firstErr == nil {
		q.firstErr = err
	}
	q.onError(err)
}
