// Package work runs detached jobs on a fixed pool of workers.
package work

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrWorkQueueClosed = errors.New("work queue closed")
	ErrQueueFull       = errors.New("work queue full")
)

// WorkItem is one queued unit of work.
type WorkItem[T any] struct {
	Data      T
	CreatedAt time.Time
}

// WorkHandler processes one item. Its error is reported to the queue's ErrorHandler.
type WorkHandler[T any] func(ctx context.Context, item T) error

// ErrorHandler observes failed or panicking items.
type ErrorHandler[T any] func(item WorkItem[T], err error)

// Options configures a WorkQueue.
type Options[T any] struct {
	Workers   int
	QueueSize int
	OnError   ErrorHandler[T]
}

// WorkQueue is a bounded queue served by a fixed set of workers. Submit never blocks.
type WorkQueue[T any] struct {
	items   chan WorkItem[T]
	handler WorkHandler[T]
	onError ErrorHandler[T]

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// Stats is a point-in-time view of queue counters.
type Stats struct {
	Queued    int
	Processed int64
	Failed    int64
	Rejected  int64
}

func NewWorkQueue[T any](opts Options[T], handler WorkHandler[T]) *WorkQueue[T] {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = opts.Workers
	}
	ctx, cancel := context.WithCancel(context.Background())
	wq := &WorkQueue[T]{
		items:   make(chan WorkItem[T], opts.QueueSize),
		handler: handler,
		onError: opts.OnError,
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < opts.Workers; i++ {
		wq.wg.Add(1)
		go wq.run()
	}
	return wq
}

// Submit enqueues data without blocking. A full queue returns ErrQueueFull.
func (wq *WorkQueue[T]) Submit(data T) error {
	wq.mu.RLock()
	defer wq.mu.RUnlock()
	if wq.stopped {
		return ErrWorkQueueClosed
	}
	select {
	case wq.items <- WorkItem[T]{Data: data, CreatedAt: time.Now()}:
		return nil
	default:
		wq.rejected.Add(1)
		return ErrQueueFull
	}
}

// Stop refuses new work and waits for queued items to finish. If ctx ends first,
// in-flight handlers see their context cancelled and Stop returns ctx.Err().
func (wq *WorkQueue[T]) Stop(ctx context.Context) error {
	wq.mu.Lock()
	if wq.stopped {
		wq.mu.Unlock()
		return nil
	}
	wq.stopped = true
	close(wq.items)
	wq.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wq.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wq.cancel()
		return nil
	case <-ctx.Done():
		wq.cancel()
		<-done
		return ctx.Err()
	}
}

func (wq *WorkQueue[T]) IsStopped() bool {
	wq.mu.RLock()
	defer wq.mu.RUnlock()
	return wq.stopped
}

func (wq *WorkQueue[T]) Stats() Stats {
	return Stats{
		Queued:    len(wq.items),
		Processed: wq.processed.Load(),
		Failed:    wq.failed.Load(),
		Rejected:  wq.rejected.Load(),
	}
}

func (wq *WorkQueue[T]) run() {
	defer wq.wg.Done()
	for item := range wq.items {
		wq.process(item)
	}
}

func (wq *WorkQueue[T]) process(item WorkItem[T]) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("work item panicked: %v", r)
			}
		}()
		return wq.handler(wq.ctx, item.Data)
	}()

	wq.processed.Add(1)
	if err != nil {
		wq.failed.Add(1)
		if wq.onError != nil {
			wq.onError(item, err)
		}
	}
}
