// Package registry holds the declarative provider records that drive
// the submit/poll/stream engines. Each record describes one remote
// service for one task kind: endpoints, auth strategy, how to fill the
// submit payload, where to read fields out of responses, how its
// status strings partition into terminal sets, and its size catalog.
// Records are validated on registration and immutable afterwards; the
// engines interpret them and contain no per-provider code.
package registry
