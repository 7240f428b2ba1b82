package rg

import "errors"

// Engine errors. Degraded conditions (missing inputs, unresolved snippet
// tags, format downgrades) are not errors: they log a warning and fall
// back visually. These values cover the fatal cases only.
var (
	// ErrNilProducer is returned by Connect when the producer node is nil.
	// This is a programming error on the caller's side, not a recoverable
	// runtime condition.
	ErrNilProducer = errors.New("rg: producer node is nil")

	// ErrNoDevice is returned when no rendering device is registered or
	// the requested one is unavailable.
	ErrNoDevice = errors.New("rg: no rendering device available")

	// ErrNoShaderSource is returned when a shader-backed node is created
	// with empty source.
	ErrNoShaderSource = errors.New("rg: shader source is empty")

	// ErrCompile wraps device compile/link failures. The error is sticky:
	// once a node's program fails to compile, every further Process
	// returns the same failure without recompiling.
	ErrCompile = errors.New("rg: shader compilation failed")

	// ErrDisposed is returned when operating on a disposed node or graph.
	ErrDisposed = errors.New("rg: disposed")

	// ErrTargetCount is returned when a multi-target node is created with
	// fewer than 1 or more than 4 targets.
	ErrTargetCount = errors.New("rg: target count must be between 1 and 4")

	// ErrNotInGraph is returned when connecting nodes that belong to
	// different graphs or to none.
	ErrNotInGraph = errors.New("rg: node is not registered in this graph")
)
