// Package engine defines the call contract with the compartmental HIV
// projection engine.
//
// The engine itself is an external collaborator. This package fixes what
// the calibration layer may assume about it:
//
// Inputs:
// Init* calls copy their arguments. Callers are free to mutate or reuse an
// array after the call returns, and must call the Init* method again for
// the engine to see any change.
//
// Outputs:
// The caller allocates an Outputs with NewOutputs and owns it. The engine
// may write into it only for the duration of one Project call and must not
// retain a reference afterwards. An Outputs whose shapes do not match the
// projection window fails the call before anything is written.
//
// Caching:
// Engines may cache projected years. Invalidate(year) discards every cached
// year from year onward; Invalidate(-1) discards all of them. Project
// always reflects the inputs set before the call.
//
// An Engine is stateful and not safe for concurrent use. Concurrent
// calibrations need independent engines.
//
// The surrogate subpackage provides a small deterministic stand-in used by
// tests and demonstrations. It is not an epidemic model.
package engine
