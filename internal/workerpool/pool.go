// Package workerpool runs long-lived tasks on a bounded set of goroutines.
package workerpool

import (
	"context"
	"sync"
)

type Task func(ctx context.Context)

type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: make(chan struct{}, size)}
}

// Go schedules task on the pool. When all slots are busy the task waits
// for a free slot; a cancelled ctx drops it instead.
func (p *Pool) Go(ctx context.Context, task Task) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-p.sem }()
		task(ctx)
	}()
}

// Wait blocks until every scheduled task has returned. There is no hard
// kill; a task that ignores ctx delays shutdown.
func (p *Pool) Wait() {
	p.wg.Wait()
}
