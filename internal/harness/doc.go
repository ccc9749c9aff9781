// Package harness runs fan-out scenarios end to end against SQLite.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: partial_failure
//	description: "third query fails"
//	query: "SELECT name FROM users WHERE id = ?"
//	users:                     # optional, defaults to the five fixture users
//	  - { id: "...", name: user1 }
//	keys: ["..."]              # optional, defaults to the user ids
//	faults:                    # optional, fail dispatch #index
//	  - { index: 2, message: "boom" }
//	policy: scope              # scope | terminate, for the stream
//	expect:
//	  values: [user1, user2, user4, user5]
//	  failures: 1
//
// Every scenario is checked against an embedded CUE schema before it is
// decoded, so unknown fields and malformed values are rejected with
// positions.
//
// # Execution
//
// Run seeds a fresh in-memory store, then drives all three collection
// modes (all-or-partial, completion order, stream) concurrently through a
// session wrapped in a fault injector. Values are compared as multisets
// since completion order is not deterministic.
//
// The canonical trace of a Result is stable across runs and is compared
// against testdata/golden/<name>.golden.
package harness
