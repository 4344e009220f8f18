// Package trace collects per-request debug information. A Trace is created
// once per inbound query and handed explicitly to every component that wants
// to record into it, including goroutines spawned for parallel responders.
// It is never shared across requests and is discarded after the response.
package trace

import (
	"sync"
	"time"
)

// Entry is one recorded event, ordered by insertion.
type Entry struct {
	Type      string         `json:"type"`
	ElapsedMS int64          `json:"elapsed_ms"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Snapshot is the immutable debug view returned to the caller.
type Snapshot struct {
	Routing     string  `json:"routing"`
	Language    string  `json:"language"`
	Guardrail   string  `json:"guardrail"`
	Logs        []Entry `json:"logs"`
	TotalTimeMS int64   `json:"total_time_ms"`
}

// Trace is safe for concurrent use by the goroutines of a single request.
type Trace struct {
	mu        sync.Mutex
	start     time.Time
	now       func() time.Time
	routing   string
	language  string
	guardrail string
	entries   []Entry
}

func New() *Trace {
	return newWithClock(time.Now)
}

func newWithClock(now func() time.Time) *Trace {
	return &Trace{
		start:     now(),
		now:       now,
		routing:   "unknown",
		language:  "unknown",
		guardrail: "passed",
	}
}

// Record appends an event with the elapsed time since the trace began.
// The payload map is retained as-is; callers must not mutate it afterwards.
func (t *Trace) Record(eventType string, payload map[string]any) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{
		Type:      eventType,
		ElapsedMS: t.now().Sub(t.start).Milliseconds(),
		Payload:   payload,
	})
}

// SetRouting records the routing decision and detected language.
func (t *Trace) SetRouting(category, language string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routing = category
	t.language = language
}

// SetGuardrail records the safety gate outcome ("passed" or "blocked").
func (t *Trace) SetGuardrail(status string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.guardrail = status
}

// Snapshot copies the current state for the response's debug_info field.
func (t *Trace) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	logs := make([]Entry, len(t.entries))
	copy(logs, t.entries)
	return Snapshot{
		Routing:     t.routing,
		Language:    t.language,
		Guardrail:   t.guardrail,
		Logs:        logs,
		TotalTimeMS: t.now().Sub(t.start).Milliseconds(),
	}
}
