// Package ui renders styled, run-once terminal output for the wifimgr
// command line tools.
//
// Components:
//
//   - Header: command banner with the operation name and its parameters
//   - Progress: step list with a progress bar
//   - Result: success, failure or warning box with key/value details
//   - Runner: drives header, steps and result for a multi-step operation
//
// Nothing here is interactive except ConfirmDangerousOperation, which
// reads one line from its input.
//
// Logging stays silent unless WIFIMGR_LOG_LEVEL is set, so this output is
// the only thing a user sees by default.
package ui
