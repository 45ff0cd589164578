package lesson

import "github.com/roach88/navicue/internal/engine"

// SignalKind is the normalized kind of a presentation event.
type SignalKind string

const (
	// SignalAdvance asks the lesson to move to its next stage.
	SignalAdvance SignalKind = "advance"

	// SignalChoose records a branch choice and moves the lesson on.
	SignalChoose SignalKind = "choose"
)

// Signal is a normalized user action. Presentation layers translate taps,
// drags, holds and typed input into signals.
//
// From is the stage the user was shown when acting. When set, the signal
// only crosses that stage's boundary, so a tap that loses a race with an
// auto-advance is absorbed instead of skipping the next stage.
type Signal struct {
	Kind   SignalKind   `json:"kind" yaml:"kind"`
	Branch string       `json:"branch,omitempty" yaml:"branch,omitempty"`
	From   engine.Stage `json:"from,omitempty" yaml:"from,omitempty"`
}

// Advance returns an unscoped advance signal.
func Advance() Signal {
	return Signal{Kind: SignalAdvance}
}

// AdvanceFrom returns an advance signal scoped to stage.
func AdvanceFrom(stage engine.Stage) Signal {
	return Signal{Kind: SignalAdvance, From: stage}
}

// Choose returns a choice signal for branch.
func Choose(branch string) Signal {
	return Signal{Kind: SignalChoose, Branch: branch}
}
