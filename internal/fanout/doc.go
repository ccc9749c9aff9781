// Package fanout dispatches one query template over many partition keys
// and gathers the asynchronous results.
//
// Every operation starts with the same dispatch step: for each key, in input
// order, the Executor is asked for a future. Dispatch never blocks. If the
// executor refuses a request, dispatch stops there and the error is returned
// synchronously; requests already dispatched keep running.
//
// The pending futures are then combined in one of three shapes:
//
//   - CollectAllOrPartial: one future over a Partial, in input order,
//     settled after every query settles. Failures are recorded per slot,
//     never surfaced as the aggregate's error.
//   - CollectInCompletionOrder: N futures reordered so that future i
//     settles no later than future i+1. Each keeps its own outcome.
//   - StreamAsAvailable: a channel of events in completion order, closed
//     once all N queries have emitted.
//
// The package owns no goroutines and performs no blocking waits. All joining
// is done by callbacks running on the goroutines that settle the inputs.
// Timeouts are the caller's concern, via the context passed to Await.
package fanout
