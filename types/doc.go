// Package types defines the shared data model of mediaflow: task kinds,
// job lifecycle states, usage accounting, uploaded-asset handles and the
// unified error taxonomy surfaced to callers.
package types
