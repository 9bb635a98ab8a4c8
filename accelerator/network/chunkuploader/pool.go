package chunkuploader

import (
	"context"
	"sync"
)

// workerPool runs part uploads with bounded parallelism and collects their results.
// Submit blocks while every worker is busy; Wait is the barrier after which all submitted
// tasks have returned.
type workerPool struct {
	semaphore chan struct{}
	wg        sync.WaitGroup
	onFailure func()

	mu      sync.Mutex
	results []PartResult
	err     error
}

func newWorkerPool(size int, onFailure func()) *workerPool {
	return &workerPool{
		semaphore: make(chan struct{}, size),
		onFailure: onFailure,
	}
}

// Submit schedules task on a free worker. It returns the context error without scheduling
// anything if ctx is done before a worker frees up.
func (p *workerPool) Submit(ctx context.Context, task func() (PartResult, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case p.semaphore <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.semaphore }()

		result, err := task()
		if err != nil {
			p.fail(err)
			return
		}

		p.mu.Lock()
		p.results = append(p.results, result)
		p.mu.Unlock()
	}()

	return nil
}

// fail records err if it is the first failure of the upload.
func (p *workerPool) fail(err error) {
	p.mu.Lock()
	first := p.err == nil
	if first {
		p.err = err
	}
	p.mu.Unlock()

	if first && p.onFailure != nil {
		p.onFailure()
	}
}

// Wait blocks until every submitted task returned. It returns the collected results in
// completion order and the first recorded failure.
func (p *workerPool) Wait() ([]PartResult, error) {
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results, p.err
}
