// Package recovery decides what happens when a pipeline component
// fails.
//
// A Manager holds one Strategy per failure class. AttemptRecovery
// retries the failed operation with growing backoff and, once retries
// are exhausted, resolves to the strategy's fallback action: give up
// quietly and mark the class degraded, ask the caller to rebuild the
// owning component, or abort the pipeline.
package recovery
