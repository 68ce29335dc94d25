package wire

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/sheepbun/yips/internal/apperrors"
)

func TestWriteReadMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := NewToken("s1", "hello")

	if err := WriteMessage(&buf, want); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	var got DaemonMessage
	if err := ReadMessage(&buf, &got); err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestWriteMessageRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	huge := ClientMessage{Type: ClientChat, Message: strings.Repeat("x", MaxFrameBytes+1)}

	err := WriteMessage(&buf, huge)
	if err == nil {
		t.Fatal("expected an error for an oversized payload")
	}

	var protoErr *apperrors.ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected a *apperrors.ProtocolError, got %T", err)
	}
}

func TestReadMessageRejectsOversizedLengthPrefix(t *testing.T) {
	var buf bytes.Buffer
	// A length prefix one byte over the bound, with no payload behind it;
	// ReadMessage must reject based on the prefix alone.
	buf.Write([]byte{0x00, 0xa0, 0x00, 0x01})

	err := ReadMessage(&buf, &ClientMessage{})
	if err == nil {
		t.Fatal("expected an error for an oversized length prefix")
	}

	var protoErr *apperrors.ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected a *apperrors.ProtocolError, got %T", err)
	}
}

func TestWriteReadMessagePreservesChatFields(t *testing.T) {
	var buf bytes.Buffer
	want := ClientMessage{Type: ClientChat, SessionID: "s1", Message: "hi", WorkingDirectory: "/tmp"}

	if err := WriteMessage(&buf, want); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	var got ClientMessage
	if err := ReadMessage(&buf, &got); err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}
