// Package services defines the shared error taxonomy and context annotations
// used across the extraction pipeline.
//
// Errors are plain sentinels combined with Wrap so that callers can classify
// failures with errors.Is while log lines and user-facing messages still carry
// stage and operation detail. Context helpers propagate job, stage, and
// backend identifiers into structured logging without threading explicit
// parameters through every call.
package services
