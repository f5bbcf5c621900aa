// Package bridge implements the main-thread task queue and the cross-thread
// attribute bridge that let sandboxed script goroutines safely call back
// into host objects that are not themselves goroutine-safe.
package bridge

import "sync"

// MainLoop is a single-consumer queue of closures. Every side-effecting
// call a script makes into host state is routed through here so it always
// executes on one goroutine, regardless of which script's worker issued it.
type MainLoop struct {
	jobs chan func()
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewMainLoop creates a main-thread queue with the given job buffer size.
func NewMainLoop(buffer int) *MainLoop {
	return &MainLoop{
		jobs: make(chan func(), buffer),
		stop: make(chan struct{}),
	}
}

// Start begins consuming queued jobs on a background goroutine.
func (m *MainLoop) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-m.stop:
				return
			case job := <-m.jobs:
				job()
			}
		}
	}()
}

// Stop drains no further jobs and waits for the consumer to exit.
func (m *MainLoop) Stop() {
	close(m.stop)
	m.wg.Wait()
}

// Enqueue schedules job to run on the main-thread goroutine.
func (m *MainLoop) Enqueue(job func()) {
	m.jobs <- job
}
