// Package views holds the client-side view controllers: the local UI state
// of each surface (inventory, orders, users, dashboard, reports, chat) and
// the actions a front-end shell can invoke on them. View state is confined
// to a single dispatcher goroutine, mirroring the single-threaded event loop
// the presentation layer runs in; bridge callbacks and actions post onto the
// same loop, so no view field ever needs its own lock.
package views

import "sync"

// Dispatcher is the single logical UI thread. All view-state reads and
// writes go through Post or Call.
type Dispatcher struct {
	tasks    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// NewDispatcher creates and starts the dispatch loop.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	for {
		select {
		case fn := <-d.tasks:
			fn()
		case <-d.done:
			return
		}
	}
}

// Post schedules fn on the dispatch loop and returns immediately. Posts to a
// stopped dispatcher are dropped.
func (d *Dispatcher) Post(fn func()) {
	select {
	case d.tasks <- fn:
	case <-d.done:
	}
}

// Call runs fn on the dispatch loop and waits for it to finish. Used for
// snapshot reads that must observe a consistent state.
func (d *Dispatcher) Call(fn func()) {
	ran := make(chan struct{})
	d.Post(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
	case <-d.done:
	}
}

// Stop halts the dispatch loop. Safe to call more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
}
