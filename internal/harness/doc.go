// Package harness runs YAML scenarios end to end: CUE class declarations
// are compiled, declared in a registry and driven through the engine one
// step at a time.
//
// A scenario looks like:
//
//	name: body_failure
//	description: a constructor body throws after its members completed
//	cue: |
//	  class: M: {
//	    constructors: default: body: [{emit: "m"}]
//	    destructor: body: [{emit: "M"}]
//	  }
//	  class: D: {
//	    members: [{name: "m", type: "M"}]
//	    constructors: default: body: [{fail: "boom"}]
//	  }
//	steps:
//	  - construct: D
//	    expect: {output: "mM", error: LIFECYCLE_FAILURE, failure_step: body}
//	assertions:
//	  - type: trace_count
//	    match: {kind: unwind}
//	    count: 1
//
// Runs are deterministic: seq values come from testutil.DeterministicClock
// and run ids from testutil.SequentialRunIDs, so the same scenario always
// yields the same trace and can be compared against a golden file.
//
// Every event is also written to an in-memory store and read back after
// the last step; a mismatch fails the scenario.
package harness
