package harness

import (
	"github.com/roach88/navicue/internal/engine"
	"github.com/roach88/navicue/internal/lesson"
)

// Trace event types.
const (
	EventMount      = "mount"
	EventSnapshot   = "snapshot"
	EventSignal     = "signal"
	EventWait       = "wait"
	EventCompletion = "completion"
	EventUnmount    = "unmount"
)

// TraceEvent is one observable step of a scenario run. Which fields are
// set depends on Type.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	AtMs int64  `json:"at_ms"` // virtual milliseconds since mount
	Type string `json:"type"`

	// mount, snapshot, unmount
	Stage string `json:"stage,omitempty"`
	Index int    `json:"index"`
	State string `json:"state,omitempty"`

	// signal
	Signal string `json:"signal,omitempty"`
	From   string `json:"from,omitempty"`
	Error  string `json:"error,omitempty"` // configuration error code returned by Dispatch

	// wait: appended when the wait ends
	Ms    int64 `json:"ms,omitempty"`
	Fired int   `json:"fired"`

	// snapshot, signal, completion
	Branch  string `json:"branch,omitempty"`
	Outcome string `json:"outcome,omitempty"`

	// completion
	FinalStage string `json:"final_stage,omitempty"`
	ElapsedMs  int64  `json:"elapsed_ms,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every observable event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion and step failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the instance snapshot after the last step.
	Final lesson.Snapshot `json:"final"`

	// Visited lists the stages entered, in order.
	Visited []engine.Stage `json:"visited"`

	// Pending is the number of timers left on the scheduler after the
	// last step.
	Pending int `json:"pending"`

	Stats       engine.Stats             `json:"stats"`
	Completions []lesson.CompletionEvent `json:"completions"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Trace:       []TraceEvent{},
		Errors:      []string{},
		Completions: []lesson.CompletionEvent{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends ev to the trace.
func (r *Result) AddEvent(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

// Count returns the number of trace events of the given type.
func (r *Result) Count(eventType string) int {
	n := 0
	for _, ev := range r.Trace {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

// Fields returns the event's fields keyed by their JSON names, omitting
// fields that do not apply to the event's type.
func (ev TraceEvent) Fields() map[string]any {
	fields := map[string]any{
		"seq":   ev.Seq,
		"at_ms": ev.AtMs,
		"type":  ev.Type,
	}
	optional := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}

	switch ev.Type {
	case EventMount, EventSnapshot, EventUnmount:
		fields["stage"] = ev.Stage
		fields["index"] = ev.Index
		fields["state"] = ev.State
		optional("branch", ev.Branch)
		optional("outcome", ev.Outcome)
	case EventSignal:
		fields["signal"] = ev.Signal
		optional("branch", ev.Branch)
		optional("from", ev.From)
		optional("error", ev.Error)
	case EventWait:
		fields["ms"] = ev.Ms
		fields["fired"] = ev.Fired
	case EventCompletion:
		fields["final_stage"] = ev.FinalStage
		fields["elapsed_ms"] = ev.ElapsedMs
		optional("branch", ev.Branch)
		optional("outcome", ev.Outcome)
	}
	return fields
}
