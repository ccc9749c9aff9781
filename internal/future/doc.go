// Package future provides single-use handles for asynchronous values.
//
// A Promise is the write side, held by whoever performs the work. A Future
// is the read side, handed to callers. Every future settles exactly once,
// either with a value or with an error, and the first settle wins.
//
// Settlement is observable three ways:
//   - Done() returns a channel closed on settlement (select-friendly)
//   - Await(ctx) blocks until settled or ctx is done
//   - OnSettle(fn) registers a callback run on the settling goroutine
//
// Futures own no goroutines. Callbacks run inline on whichever goroutine
// calls Resolve, Reject, Settle or Cancel, so they must not block.
package future
