// Package usage records per-model request and token counters in SQLite for
// the usage statistics endpoint.
package usage
