package llmclient

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// alwaysErrReader fails every Read with a fixed, non-EOF error, simulating a
// connection reset or a response body closed out from under the scanner by
// context cancellation.
type alwaysErrReader struct{ err error }

func (r alwaysErrReader) Read(p []byte) (int, error) { return 0, r.err }

func TestSSEReaderSkipsCommentsAndBlankLines(t *testing.T) {
	body := ":this is a comment\n\ndata: {\"id\":\"1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n"
	r := newSSEReader(strings.NewReader(body))

	c, ok := r.next()
	if !ok {
		t.Fatal("expected one chunk before [DONE]")
	}
	if c.err != nil {
		t.Fatalf("unexpected parse error: %v", c.err)
	}
	if len(c.data.Choices) != 1 || c.data.Choices[0].Delta.Content == nil || *c.data.Choices[0].Delta.Content != "hi" {
		t.Fatalf("chunk = %+v", c.data)
	}

	_, ok = r.next()
	if ok {
		t.Fatal("expected stream to end at [DONE]")
	}
}

func TestSSEReaderSurvivesBadLineWithoutTerminating(t *testing.T) {
	body := "data: {not json}\ndata: {\"id\":\"2\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"ok\"}}]}\ndata: [DONE]\n"
	r := newSSEReader(strings.NewReader(body))

	c, ok := r.next()
	if !ok || c.err == nil {
		t.Fatalf("expected a recoverable parse error, got ok=%v err=%v", ok, c.err)
	}

	c, ok = r.next()
	if !ok || c.err != nil {
		t.Fatalf("expected the next good chunk, got ok=%v err=%v", ok, c.err)
	}
	if c.data.Choices[0].Delta.Content == nil || *c.data.Choices[0].Delta.Content != "ok" {
		t.Fatalf("chunk = %+v", c.data)
	}
}

func TestSSEReaderEndsCleanlyWithoutDoneSentinel(t *testing.T) {
	body := "data: {\"id\":\"3\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"x\"}}]}\n"
	r := newSSEReader(strings.NewReader(body))

	_, ok := r.next()
	if !ok {
		t.Fatal("expected one chunk")
	}

	_, ok = r.next()
	if ok {
		t.Fatal("expected stream to end at EOF even without [DONE]")
	}
	if r.Err() != nil {
		t.Fatalf("Err() = %v, want nil after a clean EOF", r.Err())
	}
}

func TestSSEReaderSurfacesTransportError(t *testing.T) {
	boom := errors.New("connection reset by peer")
	body := "data: {\"id\":\"4\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"partial\"}}]}\n"
	r := newSSEReader(io.MultiReader(strings.NewReader(body), alwaysErrReader{err: boom}))

	_, ok := r.next()
	if !ok {
		t.Fatal("expected the one good chunk before the transport error")
	}

	_, ok = r.next()
	if ok {
		t.Fatal("expected the stream to end once the transport fails")
	}
	if r.Err() == nil {
		t.Fatal("expected Err() to report the transport failure, not a clean termination")
	}
}
