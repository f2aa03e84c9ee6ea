// Package observability provides the event log and metrics for the
// onboarding client. Events are persisted as JSON Lines (JSONL) and
// metrics are derived on demand by replaying the log.
package observability
