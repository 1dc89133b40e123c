// Package worker provides a small job dispatcher used to move blocking
// work off a caller's main loop. Jobs are queued on a bounded channel
// and drained by a fixed set of workers; with a single worker the jobs
// execute strictly in submission order.
package worker

import (
	"context"
	"fmt"
	"sync"

	"tikdrop/pkg/logger"
)

var log = logger.Get("Worker")

type Job func()

type Dispatcher struct {
	label   string
	workers int
	jobs    chan Job
}

// NewDispatcher creates a dispatcher with the given worker count and
// queue backlog. The label is used only for logging.
func NewDispatcher(label string, workers int, backlog int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}

	return &Dispatcher{
		label:   label,
		workers: workers,
		jobs:    make(chan Job, backlog),
	}
}

// Submit queues a job for execution, returning false when the
// backlog is full. Submission never blocks.
func (dispatcher *Dispatcher) Submit(job Job) bool {
	select {
	case dispatcher.jobs <- job:
		return true
	default:
		return false
	}
}

// Run spawns the dispatcher's workers and blocks until the provided
// context is cancelled. In-flight jobs are allowed to finish; queued
// jobs that have not started are discarded.
func (dispatcher *Dispatcher) Run(ctx context.Context) error {
	wg := &sync.WaitGroup{}
	for i := 0; i < dispatcher.workers; i++ {
		wg.Add(1)
		go func(label string) {
			defer wg.Done()
			dispatcher.drain(ctx, label)
		}(fmt.Sprintf("%s-%d", dispatcher.label, i))
	}

	wg.Wait()
	return nil
}

func (dispatcher *Dispatcher) drain(ctx context.Context, label string) {
	log.Emit(logger.DEBUG, "Worker %s started\n", label)
	for {
		select {
		case <-ctx.Done():
			log.Emit(logger.DEBUG, "Worker %s stopping\n", label)
			return
		case job := <-dispatcher.jobs:
			dispatcher.execute(label, job)
		}
	}
}

func (dispatcher *Dispatcher) execute(label string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Emit(logger.ERROR, "Worker %s recovered from panic: %v\n", label, r)
		}
	}()

	job()
}
