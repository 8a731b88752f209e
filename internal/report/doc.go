// Package report renders run summaries for CI systems and people: JUnit XML,
// a canonical JSON payload, a Markdown digest and its HTML rendering.
package report
