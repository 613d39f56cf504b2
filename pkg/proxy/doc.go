// Package proxy implements the client-facing OpenAI-compatible surface of
// the relay: request parsing and validation, response and SSE formatting,
// and the mapping of internal errors onto the OpenAI error envelope.
//
// Subpackages hold the HTTP handlers (handlers), the middleware chain
// (middleware), and the wire types (types).
package proxy
