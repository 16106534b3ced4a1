// Package memory provides in-process implementations of the authcore
// store interfaces. All state lives behind a mutex and is copied on the
// way in and out, so callers can never alias internal rows. Intended for
// tests, smoke tooling, and single-process deployments that accept losing
// state on restart.
package memory
