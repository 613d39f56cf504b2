// Package credential manages the pool of backend credentials: one JSON file
// per record on disk, an in-memory rotation manager that advances through
// the pool on a count-based schedule, and a directory watcher that rebuilds
// the pool when files change.
package credential
