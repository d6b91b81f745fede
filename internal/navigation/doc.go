// Package navigation holds the per-tool pose records produced by a tracking
// source and the index-addressed output set that owns them.
//
// Key types: Datum, OutputSet.
//
// A Datum is owned by exactly one OutputSet slot. Producers overwrite it in
// place every cycle and never reallocate it, so consumers holding a *Datum
// observe each update.
package navigation
