// Package apperrors defines the cross-layer error taxonomy shared by the
// codec, LLM client, tool dispatcher, skill runner, and turn engine. Each
// kind maps to a textual wire Error message at the daemon boundary; see
// spec.md §7.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for control-flow conditions that callers check with
// errors.Is rather than inspecting a struct.
var (
	// ErrMaxRoundsExceeded is returned by the turn engine when rounds_used
	// exceeds the configured bound.
	ErrMaxRoundsExceeded = errors.New("max rounds exceeded")

	// ErrCancelled marks a turn that was aborted by supersession or an
	// explicit Cancel. No wire Error is emitted for it; the CancelResult
	// already carries the outcome.
	ErrCancelled = errors.New("turn cancelled")

	// ErrSessionNotFound names a lookup of a session ID that was never
	// created. session.Manager only offers GetOrCreate, so no package here
	// returns it.
	ErrSessionNotFound = errors.New("session not found")

	// ErrToolNotFound is returned by the tool registry for an unregistered
	// tool name.
	ErrToolNotFound = errors.New("tool not found")

	// ErrNoActiveTurn names a Cancel that targets a session with no
	// registered ActiveTurn. The daemon reports that case as a NoActiveTurn
	// CancelResult; it does not return this error.
	ErrNoActiveTurn = errors.New("no active turn for session")
)

// ProtocolError represents a framing violation on the UDS transport: an
// oversized frame or malformed JSON payload. The connection is closed when
// one of these occurs; spec.md §4.1, §7.
type ProtocolError struct {
	Message string
	Cause   error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("protocol: %s: %v", e.Message, e.Cause)
	}
	return "protocol: " + e.Message
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

// LLMError wraps a failure from the LLM streaming client: HTTP transport
// failure, a non-2xx response, or an SSE parse failure severe enough to
// abort the stream. It ends the current turn but never the connection;
// spec.md §7.
type LLMError struct {
	// Status is the HTTP status code, or 0 for a transport-level failure.
	Status int
	// Body is the response body captured for a non-2xx response, if any.
	Body  string
	Cause error
}

func (e *LLMError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("llm: status %d: %s", e.Status, e.Body)
	}
	if e.Cause != nil {
		return fmt.Sprintf("llm: %v", e.Cause)
	}
	return "llm: request failed"
}

func (e *LLMError) Unwrap() error { return e.Cause }

// ToolErrorType categorizes a ToolError for logging; it appears in the
// error text. The failure-pivot heuristic does not look at it (it counts
// ToolOutput.Success). It never crosses the wire; the wire-visible contract is only
// ToolOutput{success, content} per spec.md §3.
type ToolErrorType string

const (
	ToolErrorNotFound     ToolErrorType = "not_found"
	ToolErrorInvalidInput ToolErrorType = "invalid_input"
	ToolErrorTimeout      ToolErrorType = "timeout"
	ToolErrorExecution    ToolErrorType = "execution"
	ToolErrorSkillFailure ToolErrorType = "skill_failure"
	ToolErrorUnknown      ToolErrorType = "unknown"
)

// ToolError represents a tool-dispatch failure: an unknown tool name,
// malformed arguments JSON, or a handler error. The turn engine converts
// these into a Tool message with success=false rather than aborting the
// turn; spec.md §4.3, §7.
type ToolError struct {
	Type     ToolErrorType
	ToolName string
	Cause    error
}

func (e *ToolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tool %q (%s): %v", e.ToolName, e.Type, e.Cause)
	}
	return fmt.Sprintf("tool %q (%s)", e.ToolName, e.Type)
}

func (e *ToolError) Unwrap() error { return e.Cause }

// NewToolError builds a ToolError with the given type; it does not inspect
// the cause. AsToolError is the function that classifies an arbitrary error.
func NewToolError(toolName string, toolErrType ToolErrorType, cause error) *ToolError {
	return &ToolError{Type: toolErrType, ToolName: toolName, Cause: cause}
}

// SkillError wraps a failure from the subprocess skill runner: a missing
// manifest or executable, a timeout, a non-zero exit, or unparsable
// stdout. A SkillError is always bubbled to the turn engine as a ToolError;
// spec.md §4.4, §7.
type SkillError struct {
	SkillName string
	Kind      SkillErrorKind
	// Status is the subprocess exit code, meaningful when Kind is
	// SkillExecutionFailed.
	Status int
	Stderr string
	// Seconds is the configured timeout, meaningful when Kind is
	// SkillTimeout.
	Seconds float64
	Cause   error
}

// SkillErrorKind enumerates the ways a skill subprocess invocation can fail.
type SkillErrorKind string

const (
	SkillManifestNotFound   SkillErrorKind = "manifest_not_found"
	SkillExecutableNotFound SkillErrorKind = "executable_not_found"
	SkillExecutionFailed    SkillErrorKind = "execution_failed"
	SkillTimeout            SkillErrorKind = "timeout"
	SkillInvalidOutput      SkillErrorKind = "invalid_output"
)

func (e *SkillError) Error() string {
	switch e.Kind {
	case SkillExecutionFailed:
		return fmt.Sprintf("skill %q: exit %d: %s", e.SkillName, e.Status, e.Stderr)
	case SkillTimeout:
		return fmt.Sprintf("skill %q: timed out after %.0fs", e.SkillName, e.Seconds)
	default:
		if e.Cause != nil {
			return fmt.Sprintf("skill %q: %s: %v", e.SkillName, e.Kind, e.Cause)
		}
		return fmt.Sprintf("skill %q: %s", e.SkillName, e.Kind)
	}
}

func (e *SkillError) Unwrap() error { return e.Cause }

// AsToolError converts any error into the ToolError the turn engine
// expects, preserving a SkillError's detail in the cause chain.
func AsToolError(toolName string, err error) *ToolError {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}
	var skillErr *SkillError
	if errors.As(err, &skillErr) {
		return NewToolError(toolName, ToolErrorSkillFailure, skillErr)
	}
	if errors.Is(err, ErrToolNotFound) {
		return NewToolError(toolName, ToolErrorNotFound, err)
	}
	return NewToolError(toolName, ToolErrorExecution, err)
}
