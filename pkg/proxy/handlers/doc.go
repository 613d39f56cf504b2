// Package handlers implements the HTTP handlers of the relay: chat
// completions (streaming and aggregated), the static model listing,
// credential management, login sessions, usage statistics, and health.
package handlers
