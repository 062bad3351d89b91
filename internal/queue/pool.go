/**
 * Bounded in-process inference pool
 *
 * A fixed number of worker goroutines execute inference calls submitted by
 * concurrent HTTP requests. Submitters wait for a free worker and may give up
 * waiting when their request context ends; a call a worker has already
 * picked up always runs to completion.
 */

package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/adverant/nexus/vision-service/internal/logging"
)

// ErrPoolStopped is returned when work is submitted to a stopped pool
var ErrPoolStopped = errors.New("inference pool is stopped")

type job struct {
	fn   func()
	done chan struct{}
}

// Pool runs submitted functions on a fixed set of workers
type Pool struct {
	size   int
	jobs   chan job
	logger *logging.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPool creates a pool with size workers. Call Start before submitting work.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		size:   size,
		jobs:   make(chan job),
		logger: logging.NewLogger("InferencePool"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// Start launches the worker goroutines
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("Starting inference pool", "workers", p.size)
		for i := 0; i < p.size; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// Stop signals the workers to exit and waits for in-flight calls to finish
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("Stopping inference pool")
		p.cancel()
		p.wg.Wait()
	})
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	p.logger.Debug("Worker started", "worker", id)

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("Worker stopping", "worker", id)
			return
		case j := <-p.jobs:
			j.fn()
			close(j.done)
		}
	}
}

// Do runs fn on a pool worker and returns its error. It returns ctx.Err() if
// ctx ends before a worker is free, and ErrPoolStopped after Stop. A panic in
// fn is returned as an error and the worker keeps serving.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	var fnErr error
	j := job{
		fn: func() {
			defer func() {
				if r := recover(); r != nil {
					fnErr = fmt.Errorf("inference call panicked: %v", r)
				}
			}()
			fnErr = fn()
		},
		done: make(chan struct{}),
	}

	select {
	case p.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolStopped
	}

	<-j.done
	return fnErr
}

// Run is Do for calls that produce a value
func Run[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}
