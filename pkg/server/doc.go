// Package server assembles the relay's HTTP surface: routes, middleware
// chain, and graceful lifecycle.
package server
