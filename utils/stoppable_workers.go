package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// StoppableWorkers is a collection of goroutines that share a cancelable context and can be
// stopped and waited on together.
type StoppableWorkers struct {
	mu         sync.Mutex
	ctx        context.Context
	cancelFunc func()

	workers sync.WaitGroup
}

// NewBackgroundStoppableWorkers runs the functions in separate goroutines whose context is
// derived from context.Background.
func NewBackgroundStoppableWorkers(funcs ...func(context.Context)) *StoppableWorkers {
	ctx, cancelFunc := context.WithCancel(context.Background())
	sw := &StoppableWorkers{ctx: ctx, cancelFunc: cancelFunc}
	sw.Add(funcs...)
	return sw
}

// Add starts up additional goroutines for each function passed in. If called after Stop it
// returns false and starts nothing.
func (sw *StoppableWorkers) Add(funcs ...func(context.Context)) bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.ctx.Err() != nil {
		return false
	}

	sw.workers.Add(len(funcs))
	for _, f := range funcs {
		goutils.PanicCapturingGo(func() {
			defer sw.workers.Done()
			f(sw.ctx)
		})
	}
	return true
}

// Stop cancels the shared context and waits for every goroutine to return.
func (sw *StoppableWorkers) Stop() {
	sw.mu.Lock()
	sw.cancelFunc()
	sw.mu.Unlock()

	sw.workers.Wait()
}

// Context gets the context the workers are checking on.
func (sw *StoppableWorkers) Context() context.Context {
	return sw.ctx
}
