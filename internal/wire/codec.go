package wire

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/sheepbun/yips/internal/apperrors"
)

// MaxFrameBytes is the largest payload accepted by ReadMessage. A length
// prefix above this bound is a protocol violation, not a short read.
const MaxFrameBytes = 10 * 1024 * 1024

// WriteMessage frames v as [4-byte big-endian length][JSON payload] and
// writes it to w in a single call.
func WriteMessage(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return &apperrors.ProtocolError{Message: "marshal payload", Cause: err}
	}
	if len(payload) > MaxFrameBytes {
		return &apperrors.ProtocolError{Message: "payload exceeds max frame size"}
	}

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)

	if _, err := w.Write(frame); err != nil {
		return &apperrors.ProtocolError{Message: "write frame", Cause: err}
	}
	return nil
}

// ReadMessage reads one length-prefixed frame from r and unmarshals it into
// v. A length prefix exceeding MaxFrameBytes is refused without reading the
// payload.
func ReadMessage(r io.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > MaxFrameBytes {
		return &apperrors.ProtocolError{Message: "frame exceeds max size"}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return &apperrors.ProtocolError{Message: "short read on frame payload", Cause: err}
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return &apperrors.ProtocolError{Message: "unmarshal payload", Cause: err}
	}
	return nil
}
