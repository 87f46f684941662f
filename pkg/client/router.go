package client

import (
	"log"
	"sync"

	"github.com/timada-org/skald/pkg/event"
)

// Handler receives one dispatched event.
type Handler func(event.Event)

// ErrorHandler receives transport-level errors.
type ErrorHandler func(error)

type registration struct {
	id int64
	fn Handler
}

type errRegistration struct {
	id int64
	fn ErrorHandler
}

// Router fans incoming events out to handlers registered per event type.
// Transport errors travel through a separate handler set so they stay
// observable independent of any particular event type. A handler that panics
// is reported to the logger and skipped; it never blocks sibling handlers and
// never reaches the transport.
type Router struct {
	mux      sync.RWMutex
	nextID   int64
	handlers map[event.Type][]registration
	errs     []errRegistration
	logger   *log.Logger
}

func NewRouter(logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}

	return &Router{
		handlers: make(map[event.Type][]registration),
		logger:   logger,
	}
}

// On registers fn for events tagged t and returns a disposer that removes
// exactly this registration. Every call registers independently: subscribing
// the same function twice dispatches it twice, and each disposer only undoes
// its own registration.
func (r *Router) On(t event.Type, fn Handler) func() {
	r.mux.Lock()
	defer r.mux.Unlock()

	r.nextID++
	id := r.nextID
	r.handlers[t] = append(r.handlers[t], registration{id: id, fn: fn})

	return func() {
		r.mux.Lock()
		defer r.mux.Unlock()

		regs := r.handlers[t]
		for i, reg := range regs {
			if reg.id == id {
				r.handlers[t] = append(regs[:i:i], regs[i+1:]...)
				return
			}
		}
	}
}

// OnError registers fn for transport errors and returns its disposer.
func (r *Router) OnError(fn ErrorHandler) func() {
	r.mux.Lock()
	defer r.mux.Unlock()

	r.nextID++
	id := r.nextID
	r.errs = append(r.errs, errRegistration{id: id, fn: fn})

	return func() {
		r.mux.Lock()
		defer r.mux.Unlock()

		for i, reg := range r.errs {
			if reg.id == id {
				r.errs = append(r.errs[:i:i], r.errs[i+1:]...)
				return
			}
		}
	}
}

// Dispatch invokes every handler registered for e.Type, in registration order.
func (r *Router) Dispatch(e event.Event) {
	r.mux.RLock()
	regs := make([]registration, len(r.handlers[e.Type]))
	copy(regs, r.handlers[e.Type])
	r.mux.RUnlock()

	for _, reg := range regs {
		r.call(reg.fn, e)
	}
}

// NotifyError invokes every registered error handler, in registration order.
func (r *Router) NotifyError(err error) {
	r.mux.RLock()
	regs := make([]errRegistration, len(r.errs))
	copy(regs, r.errs)
	r.mux.RUnlock()

	for _, reg := range regs {
		r.callErr(reg.fn, err)
	}
}

func (r *Router) call(fn Handler, e event.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Printf("skald: %s handler panic: %v", e.Type, rec)
		}
	}()

	fn(e)
}

func (r *Router) callErr(fn ErrorHandler, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Printf("skald: error handler panic: %v", rec)
		}
	}()

	fn(err)
}
