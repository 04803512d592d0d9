package windows

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/softgrove/langhub/internal/event"
)

// WindowRegistry hands out one WindowManager per window, creating managers
// lazily on first lookup and discarding them once their window goes away.
// The window table is guarded by a mutex: bus callbacks may sweep it from
// whatever goroutine publishes the event.
type WindowRegistry struct {
	configs    GlobalConfigProvider
	docFactory DocumentHandlerFactory
	start      SessionStarter
	dispatcher HandlerDispatcher
	bus        *event.Bus
	log        zerolog.Logger

	mu      sync.Mutex
	windows map[int]*WindowManager
	sub     *event.Subscription
}

// NewWindowRegistry builds a registry. When bus is non-nil the registry
// listens for TopicViewClosed and uses it to sweep managers whose windows
// are no longer valid.
func NewWindowRegistry(configs GlobalConfigProvider, docFactory DocumentHandlerFactory, start SessionStarter, dispatcher HandlerDispatcher, bus *event.Bus, log zerolog.Logger) *WindowRegistry {
	r := &WindowRegistry{
		configs:    configs,
		docFactory: docFactory,
		start:      start,
		dispatcher: dispatcher,
		bus:        bus,
		log:        log,
		windows:    make(map[int]*WindowManager),
	}
	if bus != nil {
		r.sub = bus.Subscribe(TopicViewClosed, func(any) { r.sweep() })
	}
	return r
}

// Lookup returns the manager for window, creating one on first use. Dead
// windows are swept on every lookup so the registry never grows without
// bound.
func (r *WindowRegistry) Lookup(window WindowLike) *WindowManager {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked()
	if wm, ok := r.windows[window.ID()]; ok {
		return wm
	}
	resolver := r.configs.ForWindow(window)
	docs := r.docFactory.ForWindow(window, resolver)
	wm := NewWindowManager(window, resolver, docs, r.start, r.dispatcher, r.log)
	r.windows[window.ID()] = wm
	r.log.Debug().Int("window", window.ID()).Msg("window manager created")
	return wm
}

// Count reports how many windows currently have a manager.
func (r *WindowRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}

func (r *WindowRegistry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()
}

// pruneLocked discards managers whose windows are gone, ending their
// sessions first. Must hold r.mu.
func (r *WindowRegistry) pruneLocked() {
	for id, wm := range r.windows {
		if wm.window.IsValid() {
			continue
		}
		wm.EndSessions()
		delete(r.windows, id)
		r.log.Debug().Int("window", id).Msg("window manager discarded")
	}
}

// Close ends every session in every window and detaches from the event
// bus. The registry must not be used afterwards.
func (r *WindowRegistry) Close() {
	r.mu.Lock()
	if r.sub != nil {
		r.sub.Unsubscribe()
		r.sub = nil
	}
	managers := make([]*WindowManager, 0, len(r.windows))
	for id, wm := range r.windows {
		managers = append(managers, wm)
		delete(r.windows, id)
	}
	r.mu.Unlock()

	for _, wm := range managers {
		wm.EndSessions()
	}
}
