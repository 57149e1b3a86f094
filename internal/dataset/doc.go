// Package dataset selects data rows and drives one merge cycle per row.
//
// A Selection (all rows, a 1-based range, or explicit 0-based indices) is
// resolved against a RowSource into an ordered index list. The Iterator
// then binds each row into the document through the engine worker and
// hands the row to a Sink: the print function chain for a real run, or an
// Accumulator that captures field values for a simulation run.
package dataset
