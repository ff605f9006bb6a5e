package eventbus

import (
	"context"
	"sync"

	evbus "github.com/asaskevich/EventBus"

	"poap-og-server/internal/platform/logging"
)

// AsyncEventBus delivers published events to subscribers on a pool of workers.
type AsyncEventBus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan asyncEvent
	logger    *logging.Logger

	mu      sync.RWMutex
	stopped bool
	started sync.Once
	wg      sync.WaitGroup
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

func NewAsyncEventBus(workerNum, bufferSize int, logger *logging.Logger) *AsyncEventBus {
	if workerNum <= 0 {
		workerNum = 1
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &AsyncEventBus{
		bus:       New(),
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, bufferSize),
		logger:    logger,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (aeb *AsyncEventBus) Start() {
	aeb.started.Do(func() {
		for i := 0; i < aeb.workerNum; i++ {
			aeb.wg.Add(1)
			go aeb.worker()
		}
	})
}

// Stop refuses new events and waits for queued ones to be delivered, or for ctx to end.
func (aeb *AsyncEventBus) Stop(ctx context.Context) error {
	aeb.mu.Lock()
	if aeb.stopped {
		aeb.mu.Unlock()
		return nil
	}
	aeb.stopped = true
	close(aeb.workChan)
	aeb.mu.Unlock()

	done := make(chan struct{})
	go func() {
		aeb.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (aeb *AsyncEventBus) worker() {
	defer aeb.wg.Done()
	for event := range aeb.workChan {
		aeb.deliver(event)
	}
}

func (aeb *AsyncEventBus) deliver(event asyncEvent) {
	defer func() {
		if r := recover(); r != nil {
			aeb.logger.ErrorTag("REFRESH", "subscriber for %s panicked: %v", event.topic, r)
		}
	}()
	aeb.bus.Publish(event.topic, event.args...)
}

// Publish delivers synchronously on the caller's goroutine.
func (aeb *AsyncEventBus) Publish(topic string, args ...interface{}) {
	aeb.bus.Publish(topic, args...)
}

// PublishAsync queues the event without blocking. A full queue drops it.
func (aeb *AsyncEventBus) PublishAsync(topic string, args ...interface{}) error {
	aeb.mu.RLock()
	defer aeb.mu.RUnlock()
	if aeb.stopped {
		return ErrBusStopped
	}
	select {
	case aeb.workChan <- asyncEvent{topic: topic, args: args}:
		return nil
	default:
		aeb.logger.WarnTag("REFRESH", "event queue full, dropping %s", topic)
		return ErrBusFull
	}
}

func (aeb *AsyncEventBus) Subscribe(topic string, fn interface{}) error {
	return aeb.bus.Subscribe(topic, fn)
}

func (aeb *AsyncEventBus) Unsubscribe(topic string, handler interface{}) error {
	return aeb.bus.Unsubscribe(topic, handler)
}

func (aeb *AsyncEventBus) HasCallback(topic string) bool {
	return aeb.bus.HasCallback(topic)
}

// Pending is the number of queued, undelivered events.
func (aeb *AsyncEventBus) Pending() int {
	return len(aeb.workChan)
}
