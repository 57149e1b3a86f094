// Package engine implements the printmerge document event processor.
//
// The document model may only be touched from one goroutine at a time. The
// engine enforces that by funnelling every document-mutating request through
// a single Worker.
//
// ARCHITECTURE:
//
// Single-Consumer Event Loop:
// Any goroutine (CLI, print function stages, the dataset iterator) may call
// Worker.Enqueue. Exactly one goroutine runs Worker.Run, which dequeues and
// executes events strictly in arrival order. This ensures:
// - Events never interleave or run concurrently
// - Document state changes happen in a global FIFO order
// - A failing event never stops the queue
//
// Event Processing Flow:
// 1. Producer builds an Event (kind, name, Exec, optional Done callback)
// 2. Enqueue stamps the event with a logical seq and appends it (gate permitting)
// 3. Run() dequeues events one at a time
// 4. Exec runs; panics are recovered into errors
// 5. Done(err) runs on the worker goroutine after Exec
// 6. Failures are logged; events without Done also go to the ErrorReporter
//
// Rendezvous:
// Call sites that need the document settled before continuing use a Bridge:
// create it, enqueue an event whose Done signals the bridge, then Wait.
// Worker.Call wraps this pattern.
//
// Gate:
// SetGateOpen(false) suspends intake. Events enqueued while the gate is
// closed are dropped; events already queued still run.
package engine
