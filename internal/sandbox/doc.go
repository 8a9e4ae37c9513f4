// Package sandbox executes whitelisted external extraction tools with
// resource limits.
//
// Tools are addressed by a closed enum and their argument lists come from
// fixed templates, so untrusted input can never smuggle flags or binary
// names. Each run is confined to a per-job work directory, killed (as a whole
// process group) on deadline or cancellation, and bounded by an output byte
// budget enforced by a watchdog. Partial output from a killed run is removed
// before the error is returned.
package sandbox
