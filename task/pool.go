package task

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// Executor runs work off the engine goroutine.
type Executor interface {
	Go(work func())
	// Wait blocks until all work handed to Go has returned.
	Wait()
}

// Pool runs queued bodies on at most n worker goroutines. Go never blocks:
// work beyond the running workers waits in the queue in arrival order, and
// a worker exits once the queue is empty.
type Pool struct {
	sem *semaphore.Weighted // one unit per live worker
	wg  sync.WaitGroup

	mu      sync.Mutex
	queue   []func()
	workers int
}

var _ Executor = (*Pool)(nil)

// NewPool returns a pool running up to workers bodies concurrently.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers))}
}

func (p *Pool) Go(work func()) {
	p.wg.Add(1)
	p.mu.Lock()
	p.queue = append(p.queue, work)
	start := p.sem.TryAcquire(1)
	if start {
		p.workers++
	}
	p.mu.Unlock()
	if start {
		go p.worker()
	}
}

func (p *Pool) worker() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.workers--
			p.sem.Release(1)
			p.mu.Unlock()
			return
		}
		work := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(work)
	}
}

func (p *Pool) run(work func()) {
	defer p.wg.Done()
	work()
}

// Workers returns the number of live worker goroutines.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

func (p *Pool) Wait() { p.wg.Wait() }

// Spawn runs every body on a dedicated goroutine with no bound.
type Spawn struct {
	wg sync.WaitGroup
}

var _ Executor = (*Spawn)(nil)

func (s *Spawn) Go(work func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		work()
	}()
}

func (s *Spawn) Wait() { s.wg.Wait() }
