// Package runner executes test cases step by step.
//
// A Runner resolves each step's tool by name from a Toolbox and invokes it with
// the step's input. The first step that does not pass halts its case: every
// remaining step is recorded as blocked with zero duration, so a case result
// always lists every declared step.
//
// Step outcome rules:
//   - no tool registered: blocked, "Unsupported tool: <name>"
//   - tool returned an error: fail with the error message, never retried
//   - output with a boolean "success" field set to false: fail
//   - anything else: pass
//
// Any non-nil output is recorded as run evidence under "step:<stepId>".
//
// Suites are looked up in an explicit SuiteRegistry passed to the Runner;
// there is no process-wide registry.
package runner
