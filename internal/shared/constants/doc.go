// Package constants centralizes defaults shared across the checks and the CLI.
//
// Batch sizes, retry counts, timeouts and file permissions live here so the
// checker families and cmd/ agree on them without importing each other.
package constants
