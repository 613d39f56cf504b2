// Package backend implements the client for the upstream CodeBuddy API: the
// streaming-only chat completion endpoint, chunk translation to the OpenAI
// wire format, stream aggregation for non-streaming callers, and the
// browser-based login endpoints.
package backend
