// Package authflow implements the asynchronous login flow: a controller that
// starts browser-based login sessions, polls the backend until each session
// reaches a terminal state, saves granted tokens as credential files, and a
// cron-driven garbage collector for stale sessions.
package authflow
