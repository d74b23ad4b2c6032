// Package errors provides the classified error primitives used across nise-bosh.
//
// Every failure surfaced by the builder is a ClassifiedError carrying a category
// (repository, not_found, dependency, packaging, template, archive, ...), a
// severity and structured context. Errors are never retried; the category
// decides the process exit code.
//
// Example usage:
//
//	err := errors.PackagingError("packaging script failed").
//		WithContext("package", name).
//		WithContext("exit_status", status).
//		WithCause(runErr).
//		Build()
package errors
