// Package indicator computes the moving-average overlay shown next to a
// symbol's price series.
//
// Two entry points exist: ComputeFull for a whole history and ExtendOne for a
// single streamed point. Both go through the same window kernel so their
// results agree bit-for-bit after rounding.
package indicator
