// Package harness runs lesson lifecycle scenarios on a virtual clock.
//
// A scenario mounts one lesson, plays a script of waits and signals
// against it, and asserts on the resulting trace and final state. Runs are
// fully deterministic: time is virtual, run ids are fixed, and every trace
// event carries a logical seq.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	lesson: koan-ember-42          # lesson id
//	catalog: ../catalog            # optional; built-in catalog if omitted
//	run_id: run-a                  # optional fixed run id
//	plan:                          # optional plan override
//	  - {stage: dormant, auto_advance: 2s}
//	  - {stage: afterglow, terminal: true}
//	steps:
//	  - wait: 2s
//	  - signal: advance
//	  - signal: choose
//	    branch: flame
//	    from: engaged
//	  - signal: choose
//	    branch: nope
//	    expect_error: UNKNOWN_BRANCH
//	  - unmount: true
//	assertions:
//	  - type: stage_sequence
//	    stages: [dormant, engaged, afterglow]
//	  - type: final_state
//	    expect: {stage: afterglow, state: completed, pending: 0}
//	  - type: completion
//	    expect: {elapsed_ms: 3500, branch: flame}
//	  - type: trace_count
//	    event: completion
//	    count: 1
//
// # Assertion Types
//
//   - stage_sequence: the visited stages, exactly
//   - final_state: fields of the final snapshot (subset match)
//   - completion: exactly one completion event, fields subset-matched
//   - completion_count: the number of completion events
//   - trace_contains: some trace event of the given type matches
//   - trace_count: the number of matching trace events of the given type
//
// # Traces
//
// The trace records mount, snapshot, signal, wait, completion and unmount
// events. Signals are recorded before the snapshots they cause; a wait
// event is recorded when the wait ends and counts the callbacks it fired.
// Traces serialize to canonical JSON for golden file comparison.
package harness
