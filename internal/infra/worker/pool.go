// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// A small bounded pool. Submit blocks while every worker is busy, so callers
// get back-pressure instead of dropped tasks.

type Task func(ctx context.Context) error

var ErrNilTask = errors.New("nil task")

type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	n    int
	log  *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{jobs: make(chan Task), n: workers, log: logger}
}

// Start launches the workers. Tasks receive ctx; a cancelled ctx does not
// drop queued tasks, it is up to each task to give up early.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for task := range p.jobs {
				if err := task(ctx); err != nil {
					p.log.Warn().Int("worker", id).Err(err).Msg("worker task error")
				}
			}
		}(i)
	}
}

// Submit hands task to the next free worker.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return ErrNilTask
	}
	select {
	case p.jobs <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop waits for in-flight tasks. Submit must not be called afterwards.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
