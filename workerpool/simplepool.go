// Package simplepool implements chronoq.WorkerPool as a fixed-size pool of
// goroutines fed by a buffered semaphore channel, the same token-channel
// shape the teacher repo uses for OptimizedScheduler.workerPool /
// jobWorkerPool.
package simplepool

import (
	"sync"

	"github.com/arjunv/chronoq"
)

// Pool is a fixed-size chronoq.WorkerPool.
type Pool struct {
	size   int
	tokens chan struct{}
	wg     sync.WaitGroup

	mu       sync.Mutex
	shutdown bool
}

// New builds a Pool with `size` concurrent worker slots.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	tokens := make(chan struct{}, size)
	for i := 0; i < size; i++ {
		tokens <- struct{}{}
	}
	return &Pool{size: size, tokens: tokens}
}

func (p *Pool) Size() int { return p.size }

// BlockForAvailableThreads blocks until at least one worker slot is idle,
// then returns the number of idle slots WITHOUT reserving one — mirroring
// Quartz's advisory semantics, where the scheduler thread uses the count to
// decide how many triggers to acquire next round, not to reserve a slot.
func (p *Pool) BlockForAvailableThreads() int {
	token := <-p.tokens
	p.tokens <- token
	return len(p.tokens)
}

// RunInThread reserves a slot and runs runnable in its own goroutine,
// returning the slot when it finishes. Returns false if the pool has been
// shut down.
func (p *Pool) RunInThread(runnable chronoq.Runnable) bool {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	<-p.tokens
	go func() {
		defer func() {
			p.tokens <- struct{}{}
			p.wg.Done()
		}()
		runnable.Run()
	}()
	return true
}

// Shutdown stops accepting new work. If waitForCompletion, blocks until
// every in-flight RunInThread goroutine returns.
func (p *Pool) Shutdown(waitForCompletion bool) {
	p.mu.Lock()
	p.shutdown = true
	p.mu.Unlock()
	if waitForCompletion {
		p.wg.Wait()
	}
}
