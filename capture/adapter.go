package capture

import (
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/go-replica/replmap/crdt"
)

// Structs

// ApplyFunc is the local write entry point the adapter
// delivers throttled events into, typically a closure around
// a replica's ApplyLocal.
type ApplyFunc func(key string, value crdt.Value)

// Adapter bounds how often raw external events reach a
// replica's write path.
type Adapter struct {
	logger log.Logger
	window time.Duration
	apply  ApplyFunc
	events chan event
	quit   chan struct{}
	done   chan struct{}
}

type event struct {
	key   string
	value crdt.Value
}

// Functions

// InitAdapter initializes above struct and starts the
// throttling routine in background. Events submitted closer
// together than window are collapsed onto the last one.
func InitAdapter(logger log.Logger, window time.Duration, apply ApplyFunc) *Adapter {

	adapter := &Adapter{
		logger: logger,
		window: window,
		apply:  apply,
		events: make(chan event),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	// Start throttling routine in background.
	go adapter.run()

	return adapter
}

// Submit hands a raw external event to the adapter. Within
// one window only the last submitted event survives.
func (a *Adapter) Submit(key string, value crdt.Value) {

	select {
	case a.events <- event{key: key, value: value}:
	case <-a.quit:
		level.Debug(a.logger).Log("msg", "dropped event submitted after adapter shutdown", "key", key)
	}
}

// Close flushes a still-pending event and stops the
// throttling routine. It blocks until the routine exited.
func (a *Adapter) Close() {
	close(a.quit)
	<-a.done
}

// run is the throttling routine. The first event opens a
// fixed window, the last event within the window is the one
// delivered once it elapses (trailing edge).
func (a *Adapter) run() {

	defer close(a.done)

	// Create a timer to fire at window ends. It starts
	// drained, a window only opens when an event arrives.
	windowT := time.NewTimer(a.window)
	if !windowT.Stop() {
		<-windowT.C
	}

	var pending *event

	for {

		select {

		case ev := <-a.events:

			// First event of a window arms the timer,
			// later ones only replace the payload.
			if pending == nil {
				windowT.Reset(a.window)
			}
			pending = &ev

		case <-windowT.C:

			if pending != nil {
				a.apply(pending.key, pending.value)
				pending = nil
			}

		case <-a.quit:

			// Deliver a still-pending trailing event
			// before shutting down.
			if pending != nil {
				a.apply(pending.key, pending.value)
			}

			windowT.Stop()

			return
		}
	}
}
