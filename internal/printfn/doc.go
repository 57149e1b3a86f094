// Package printfn implements the print function chain.
//
// A Chain holds the print functions of one print run, ordered by their
// registered ordering key and then by name. Running the chain invokes the
// first function with a Stage bound to position 0; the function calls
// Stage.Advance to run the rest of the chain, and the last Advance performs
// the Terminal action. Every stage body runs on its own goroutine and is
// joined by its caller:
//
//	Run ──► stage 0 ──Advance──► stage 1 ──Advance──► terminal
//	                 ◄──join────          ◄──return──
//
// Functions share a PropertyBag, a write-once cancellation flag and an
// optional Progress aggregator for the lifetime of the run.
package printfn
