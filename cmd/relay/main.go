// CodeBuddy Relay is an OpenAI-compatible proxy for the CodeBuddy API.
//
// It exposes the standard chat completion surface over a backend that only
// speaks streaming, providing:
//   - Streaming passthrough and non-streaming aggregation of completions
//   - A rotating pool of stored credentials with automatic invalidation
//   - An asynchronous browser login flow that mints new credentials
//   - Per-model usage statistics and Prometheus metrics
//
// Usage:
//
//	# Start the relay with the default configuration
//	relay run
//
//	# Start with a custom configuration file
//	relay run --config /path/to/config.yaml
//
//	# Show version information
//	relay version
package main

func main() {
	Execute()
}
