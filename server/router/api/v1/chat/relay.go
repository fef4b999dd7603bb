package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/pkg/errors"
)

// State tracks a turn's progress through the stream protocol.
type State int

const (
	StateIdle State = iota
	StateDispatched
	StateStreaming
	StateEnriching
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateDispatched:
		return "DISPATCHED"
	case StateStreaming:
		return "STREAMING"
	case StateEnriching:
		return "ENRICHING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ErrTerminal is returned for writes attempted after the stream reached a
// terminal state.
var ErrTerminal = errors.New("stream already terminated")

// Relay pushes line-prefixed JSON events over a long-lived connection.
// Each event is written as "data: <json>\n\n" and flushed immediately.
// It is safe for concurrent use; the deferred search-status timer and the
// main turn goroutine may write at the same time.
type Relay struct {
	mu    sync.Mutex
	w     io.Writer
	flush func()
	state State
}

// NewRelay wraps a response writer. The writer should already carry SSE
// headers. If it implements http.Flusher each event is flushed as written.
func NewRelay(w io.Writer) *Relay {
	r := &Relay{w: w, state: StateIdle, flush: func() {}}
	if f, ok := w.(http.Flusher); ok {
		r.flush = f.Flush
	}
	return r
}

// State returns the current stream state.
func (r *Relay) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// MarkDispatched records that the model call has been issued.
func (r *Relay) MarkDispatched() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateIdle {
		r.state = StateDispatched
	}
}

// MarkEnriching records that the model stream completed and post-turn
// enrichment is running.
func (r *Relay) MarkEnriching() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateStreaming || r.state == StateDispatched {
		r.state = StateEnriching
	}
}

// WriteSearchStatus emits a {"searchStatus": ...} event.
func (r *Relay) WriteSearchStatus(status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminated() {
		return ErrTerminal
	}
	return r.writeEvent(struct {
		SearchStatus string `json:"searchStatus"`
	}{status})
}

// WriteContent emits a {"content": ...} event and moves the stream into the
// STREAMING state.
func (r *Relay) WriteContent(chunk string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminated() {
		return ErrTerminal
	}
	if r.state == StateDispatched || r.state == StateIdle {
		r.state = StateStreaming
	}
	return r.writeEvent(struct {
		Content string `json:"content"`
	}{chunk})
}

// WriteDone emits the terminal {"done": true, "suggestions": [...]} event.
// The suggestions list is always marshaled as an array, never null.
func (r *Relay) WriteDone(suggestions []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminated() {
		return ErrTerminal
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	err := r.writeEvent(struct {
		Done        bool     `json:"done"`
		Suggestions []string `json:"suggestions"`
	}{true, suggestions})
	r.state = StateDone
	return err
}

// WriteError emits the terminal {"error": ...} event. No events follow.
func (r *Relay) WriteError(message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminated() {
		return ErrTerminal
	}
	err := r.writeEvent(struct {
		Error string `json:"error"`
	}{message})
	r.state = StateFailed
	return err
}

func (r *Relay) terminated() bool {
	return r.state == StateDone || r.state == StateFailed
}

// writeEvent must be called with the mutex held.
func (r *Relay) writeEvent(payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal stream event")
	}
	if _, err := fmt.Fprintf(r.w, "data: %s\n\n", b); err != nil {
		return errors.Wrap(err, "failed to write stream event")
	}
	r.flush()
	return nil
}
