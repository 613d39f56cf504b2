// Package middleware provides the HTTP middleware chain of the relay:
// panic recovery, request IDs, structured request logging, CORS, and the
// service password check.
package middleware
