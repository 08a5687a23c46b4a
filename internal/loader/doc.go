// Package loader implements the warm tier orchestration: a priority-queued
// background worker that fills the session cache without blocking the
// foreground, and the LazyLoader facade the rest of the application calls.
//
// The contract is startup latency first, consistency by fallback: only the
// active workspace is loaded synchronously at initialization; every other
// workspace arrives via the background worker, and any read that outruns it
// falls back to a bounded synchronous store read.
package loader
