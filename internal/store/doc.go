// Package store persists test runs and bug reports.
//
// Two interchangeable backends implement Storage:
//   - FileStore: one JSON document per record, a directory per entity type,
//     full linear scan on search
//   - SQLiteStore: indexed columns for url, severity, and dates plus the full
//     record serialized as JSON
//
// Both backends share Matches and sortNewestFirst, so a query returns the same
// records in the same order regardless of the backend.
//
// # Effective Date
//
// Date-range filters compare a record's effective date, the first present of
// startedAt, observedAt, reportedAt, and createdAt. Dates are compared as
// fixed-width strings (qa.TimestampLayout), so lexical order is time order.
//
// # Concurrency
//
// A single process owns a store at a time. UpdateBugReport is last-write-wins:
// two read-modify-write cycles racing on the same record can lose one update.
package store
