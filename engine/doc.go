// Package engine runs generation jobs against declarative provider
// records: it uploads reference bitmaps, assembles the submit payload
// from the record's schema, and waits for a terminal state by polling
// a status endpoint, reading one long streaming response, or taking a
// synchronous result. All jobs share one state machine; the engine
// contains no per-provider code.
package engine
