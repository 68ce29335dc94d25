package llmclient

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// sseChunk is one parsed event from the stream, or a parse error that does
// not terminate the stream.
type sseChunk struct {
	data chunk
	err  error
}

// sseReader splits an SSE byte stream on newlines, yielding one chunk per
// `data:` line until `[DONE]` or EOF. Mirrors the line-buffering algorithm
// of a byte-stream SSE parser: skip blank lines and `:`-comments, only act
// on `data:` lines, treat a bad payload as a recoverable per-line error.
type sseReader struct {
	scanner *bufio.Scanner
	done    bool
	err     error
}

func newSSEReader(r io.Reader) *sseReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	return &sseReader{scanner: scanner}
}

// next returns the next chunk, or ok=false once the stream is exhausted
// (either by `[DONE]` or the underlying reader reaching EOF).
func (s *sseReader) next() (sseChunk, bool) {
	if s.done {
		return sseChunk{}, false
	}

	for s.scanner.Scan() {
		line := strings.TrimRight(s.scanner.Text(), "\r")

		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)

		if data == "[DONE]" {
			s.done = true
			return sseChunk{}, false
		}

		var c chunk
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return sseChunk{err: err}, true
		}
		return sseChunk{data: c}, true
	}

	s.done = true
	s.err = s.scanner.Err()
	return sseChunk{}, false
}

// Err reports a genuine transport failure (connection reset, context
// cancellation closing the response body, ...) that ended the stream
// without a clean [DONE] sentinel or EOF. It is nil after a clean
// termination, and must be checked once next returns ok=false.
func (s *sseReader) Err() error {
	return s.err
}
