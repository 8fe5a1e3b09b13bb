package chronoq

// Runnable is the unit of work a WorkerPool executes. JobRunShell
// implements this.
type Runnable interface {
	Run()
}

// WorkerPool is the bounded worker-pool contract named in spec.md §4.6.
type WorkerPool interface {
	// BlockForAvailableThreads blocks until at least one worker is idle and
	// returns the count of currently idle workers.
	BlockForAvailableThreads() int
	// RunInThread hands runnable to an idle worker. Returns false only if
	// the pool is shutting down.
	RunInThread(runnable Runnable) bool
	// Shutdown stops accepting new work. If waitForCompletion, blocks until
	// all in-flight workers return.
	Shutdown(waitForCompletion bool)
	// Size returns the pool's configured worker count.
	Size() int
}
