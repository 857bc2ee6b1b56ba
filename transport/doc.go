// Package transport is the HTTP layer shared by every provider call:
// request building, auth application, retry with backoff, optional
// browser-profile TLS for consumer endpoints, and incremental line
// streaming for NDJSON and SSE responses.
package transport
