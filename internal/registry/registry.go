// Package registry is the process-wide directory of feature registrations:
// the capabilities the assistant may observe and the actions it may execute,
// contributed and withdrawn at runtime as features mount and unmount.
package registry

import (
	"sync"

	"github.com/luminos-app/agentcore/internal/trust"
	"go.uber.org/zap"
)

// Listener is notified after every registry mutation.
type Listener func()

// Registry tracks registered pages, the active page, and subscribers.
// All reads operate on in-memory state and never block on I/O. Features
// mount and unmount independently, so an action referenced by an in-flight
// tool call may disappear at any time — FindAction returning no match is an
// expected outcome, not an error.
type Registry struct {
	logger *zap.Logger

	mu       sync.RWMutex
	pages    map[string]*PageRegistration
	order    []string // pageIDs in first-registration order
	activeID string
	subs     map[int]Listener
	nextSub  int
}

// New creates an empty Registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger: logger,
		pages:  make(map[string]*PageRegistration),
		subs:   make(map[int]Listener),
	}
}

// Register inserts or replaces the entry keyed by PageID. Idempotent:
// re-registering the same id overwrites in place and keeps its position.
func (r *Registry) Register(page *PageRegistration) {
	r.mu.Lock()
	if _, exists := r.pages[page.PageID]; !exists {
		r.order = append(r.order, page.PageID)
	}
	r.pages[page.PageID] = page
	r.mu.Unlock()

	r.logger.Debug("page registered",
		zap.String("page_id", page.PageID),
		zap.Int("actions", len(page.Actions)),
	)
	r.notify()
}

// Unregister removes the entry. If it was the active page, active-page
// tracking is cleared.
func (r *Registry) Unregister(pageID string) {
	r.mu.Lock()
	if _, exists := r.pages[pageID]; !exists {
		r.mu.Unlock()
		return
	}
	delete(r.pages, pageID)
	for i, id := range r.order {
		if id == pageID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.activeID == pageID {
		r.activeID = ""
	}
	r.mu.Unlock()

	r.logger.Debug("page unregistered", zap.String("page_id", pageID))
	r.notify()
}

// SetActive marks one registered page as currently in view. Only selects
// whose context is surfaced; it does not gate execution. Unknown ids are
// ignored.
func (r *Registry) SetActive(pageID string) {
	r.mu.Lock()
	if _, ok := r.pages[pageID]; ok {
		r.activeID = pageID
	}
	r.mu.Unlock()
	r.notify()
}

// Active returns the currently active page, or nil.
func (r *Registry) Active() *PageRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.activeID == "" {
		return nil
	}
	return r.pages[r.activeID]
}

// All returns every registered page in first-registration order.
func (r *Registry) All() []*PageRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*PageRegistration, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.pages[id])
	}
	return out
}

// Page returns the registration for a pageID, or nil.
func (r *Registry) Page(pageID string) *PageRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pages[pageID]
}

// AllActions flattens every registered page's actions into one list, in
// page registration order. Used to build the model's tool-calling schema.
func (r *Registry) AllActions() []ActionDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ActionDefinition
	for _, id := range r.order {
		out = append(out, r.pages[id].Actions...)
	}
	return out
}

// FindAction locates the page/action pair exposing the given action id.
// Both dot and underscore separators match — normalization happens here, at
// the registry boundary, not in callers. Returns nil if no registered page
// currently exposes the id, which legitimately happens when a feature
// unmounts after the model proposed the call.
func (r *Registry) FindAction(actionID string) *ActionMatch {
	want := trust.NormalizeToolName(actionID)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		page := r.pages[id]
		for i := range page.Actions {
			if trust.NormalizeToolName(page.Actions[i].ID) == want {
				return &ActionMatch{Page: page, Action: &page.Actions[i]}
			}
		}
	}
	return nil
}

// Subscribe registers a listener for registry mutations and returns its
// unsubscribe function. Subscribe and unsubscribe must be paired across
// feature mount/unmount cycles.
func (r *Registry) Subscribe(l Listener) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = l
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// notify invokes listeners outside the lock so they may re-read the registry.
func (r *Registry) notify() {
	r.mu.RLock()
	listeners := make([]Listener, 0, len(r.subs))
	for _, l := range r.subs {
		listeners = append(listeners, l)
	}
	r.mu.RUnlock()

	for _, l := range listeners {
		l()
	}
}
