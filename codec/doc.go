// Package codec converts between in-memory media representations and
// provider wire formats: float image tensors ↔ PNG/JPEG bytes and data
// URLs, remote media URLs → tensors or temp-file video handles, and
// audio bytes ↔ float waveforms.
package codec
