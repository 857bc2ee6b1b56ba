package transport

import (
	"bufio"
	"bytes"
	"io"
)

var (
	dataPrefix  = []byte("data:")
	eventPrefix = []byte("event:")
	doneMarker  = []byte("[DONE]")
)

// LineStream reads a streaming response one payload line at a time.
// It understands both NDJSON bodies and SSE framing: "data:" prefixes
// are stripped, "event:" and comment lines are skipped, and the
// "[DONE]" sentinel ends the stream.
type LineStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// NewLineStream wraps a response body. The caller must Close it.
func NewLineStream(body io.ReadCloser) *LineStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), 4<<20)
	return &LineStream{body: body, scanner: scanner}
}

// Next returns the next payload line. io.EOF means the server closed
// the stream or sent the done sentinel; any other error means the
// connection broke mid-stream.
func (s *LineStream) Next() ([]byte, error) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 || line[0] == ':' || bytes.HasPrefix(line, eventPrefix) {
			continue
		}
		if bytes.HasPrefix(line, dataPrefix) {
			line = bytes.TrimSpace(line[len(dataPrefix):])
			if len(line) == 0 {
				continue
			}
		}
		if bytes.Equal(line, doneMarker) {
			return nil, io.EOF
		}
		// Copy out: the scanner reuses its buffer on the next call.
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Close releases the underlying connection.
func (s *LineStream) Close() error {
	return s.body.Close()
}
