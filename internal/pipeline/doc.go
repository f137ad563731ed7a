// Package pipeline runs a build request through three generation stages.
//
// The planner streams text to the peer and submits a structured plan via
// the submit_plan tool. The executor builds the plan one step at a time,
// each step an agent loop whose action calls are forwarded to the peer
// through the session's correlator. The finalizer writes a short summary.
//
// A run holds the session's busy flag for its whole lifetime. Cancellation
// is observed between steps and before each forwarded action; in-flight
// generation is never interrupted by it.
package pipeline
