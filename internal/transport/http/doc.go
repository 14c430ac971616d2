// Package http provides custom HTTP transport utilities,
// including request/response logging and User-Agent header injection.
// The artwork client builds its HTTP client from these round trippers.
package http
