package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sheepbun/yips/internal/apperrors"
)

// TestChatStreamPropagatesTransportFailure guards against a silently
// truncated success: if the connection drops mid-stream (a reset, or the
// request's ctx being cancelled out from under it), ChatStream must return
// an error rather than a Response built from whatever content arrived
// before the drop.
func TestChatStreamPropagatesTransportFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"id\":\"1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"partial\"}}]}\n\n")
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		// Aborting the handler truncates the response without a clean
		// terminator, simulating a connection reset mid-stream.
		panic(http.ErrAbortHandler)
	}))
	defer backend.Close()

	client := New(backend.URL, "test-model", nil)
	_, err := client.ChatStream(context.Background(), nil, nil, nil)
	if err == nil {
		t.Fatal("expected ChatStream to report the truncated stream as an error")
	}
	var llmErr *apperrors.LLMError
	if !errors.As(err, &llmErr) {
		t.Fatalf("expected an *apperrors.LLMError, got %T: %v", err, err)
	}
}
