// Package engine implements the lesson lifecycle engine.
//
// An Engine walks a Plan, an ordered list of named stages, from its first
// step to its single terminal step. A step either waits for the caller
// (Advance / AdvanceFrom) or auto-advances after a delay scheduled on a
// scheduler.Scheduler.
//
// ARCHITECTURE:
//
// Single Transition Entry Point:
// Start, Advance, AdvanceFrom, Cancel and every scheduled callback take the
// same mutex before touching state. Of a manual advance and an auto-advance
// racing for the same boundary, whichever takes the mutex first crosses it;
// the other finds the engine past its boundary and is absorbed, never
// queued.
//
// Timer Ownership:
// The engine owns every timer it schedules. Crossing a boundary stops the
// timers registered for it, entering the terminal stage or cancelling stops
// the rest. A callback that was already claimed by its scheduler when Stop
// ran still checks that its timer id is registered and that the engine is
// at the index it was scheduled from, so a stale callback can never move
// the engine.
//
// Notifications:
// Transition observers and the completion notifier run after the mutex is
// released, in transition order, on the goroutine that caused the
// transition.
package engine
