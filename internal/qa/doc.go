// Package qa defines the domain model shared by every bugzapp component.
//
// The types in this package are plain data: test cases and their steps,
// the results a run produces, the evidence attached to those results, bug
// reports built from failed assertions, and submission records driven by the
// submission queue. JSON field names match the durable record format, so a
// value marshalled here is exactly what the storage backends write to disk.
//
// # Status Precedence
//
// Step, case, and run statuses share one precedence order:
//
//	fail > blocked > pass
//
// AggregateStatus is the only place the order is encoded. A case result's
// status is always derived from its steps and a run's status from its cases.
//
// # Timestamps
//
// All timestamps are UTC with millisecond precision (see Now). Components that
// compare dates lexically use FormatTimestamp, whose fixed-width layout makes
// string order equal to chronological order.
package qa
