// Package control tracks the interactive link and delete controls attached to
// delivered messages.
package control

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iconidentify/linkgrab/internal/domain"
	"github.com/iconidentify/linkgrab/internal/platform"
)

// tombstoneTTL is how long an expired control is remembered so late presses
// report expiry rather than an unknown control.
const tombstoneTTL = time.Hour

// TimeoutFunc runs once when a control expires, with the messages it governed.
type TimeoutFunc func(desc domain.ControlDescriptor, messages []platform.Message)

type entry struct {
	desc      domain.ControlDescriptor
	messages  []platform.Message
	timer     *time.Timer
	onTimeout TimeoutFunc
}

type tombstone struct {
	at       time.Time
	desc     domain.ControlDescriptor
	messages []platform.Message
}

// Registry holds live controls in memory.
type Registry struct {
	mu       sync.Mutex
	controls map[domain.ControlID]*entry
	expired  map[domain.ControlID]tombstone
	now      func() time.Time
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		controls: make(map[domain.ControlID]*entry),
		expired:  make(map[domain.ControlID]tombstone),
		now:      time.Now,
		logger:   logger,
	}
}

// Register starts tracking desc. A positive desc.Timeout schedules expiry,
// after which onTimeout (if any) runs and the control is forgotten.
func (r *Registry) Register(desc domain.ControlDescriptor, onTimeout TimeoutFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.controls[desc.ID]; ok {
		return fmt.Errorf("control %s already registered", desc.ID)
	}
	e := &entry{desc: desc, onTimeout: onTimeout}
	if desc.Timeout > 0 {
		id := desc.ID
		e.timer = time.AfterFunc(desc.Timeout, func() { r.expire(id) })
	}
	r.controls[desc.ID] = e
	return nil
}

// Bind adds msg to the messages governed by the control.
func (r *Registry) Bind(id domain.ControlID, msg platform.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.messages = append(e.messages, msg)
	return nil
}

// Get returns the descriptor and governed messages of a live control. For a
// control that expired within the last hour it returns the descriptor marked
// Expired, its messages and domain.ErrControlExpired.
func (r *Registry) Get(id domain.ControlID) (domain.ControlDescriptor, []platform.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.expired[id]; ok {
		return t.desc, append([]platform.Message(nil), t.messages...), domain.ErrControlExpired
	}
	e, err := r.lookup(id)
	if err != nil {
		return domain.ControlDescriptor{}, nil, err
	}
	return e.desc, append([]platform.Message(nil), e.messages...), nil
}

// Delete removes the control when requesterID matches the original requester
// and returns every message it governed.
func (r *Registry) Delete(id domain.ControlID, requesterID string) ([]platform.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if e.desc.RequesterID != requesterID {
		return nil, domain.ErrNotRequester
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(r.controls, id)
	return e.messages, nil
}

// Len returns the number of live controls.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controls)
}

// Close stops every pending timeout without running callbacks.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.controls {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(r.controls, id)
	}
}

func (r *Registry) lookup(id domain.ControlID) (*entry, error) {
	if e, ok := r.controls[id]; ok {
		return e, nil
	}
	if _, ok := r.expired[id]; ok {
		return nil, domain.ErrControlExpired
	}
	return nil, domain.ErrControlNotFound
}

func (r *Registry) expire(id domain.ControlID) {
	r.mu.Lock()
	e, ok := r.controls[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.controls, id)
	now := r.now()
	desc := e.desc
	desc.Expired = true
	r.expired[id] = tombstone{at: now, desc: desc, messages: e.messages}
	for old, t := range r.expired {
		if now.Sub(t.at) > tombstoneTTL {
			delete(r.expired, old)
		}
	}
	r.mu.Unlock()

	r.logger.Debug("control expired", "control_id", id, "messages", len(e.messages))
	if e.onTimeout != nil {
		e.onTimeout(desc, e.messages)
	}
}
