// Package types defines the client-facing wire types of the relay: the
// OpenAI-compatible error envelope and the response shapes of the chat,
// model, credential, login, and usage endpoints.
package types
