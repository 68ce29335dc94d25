package turnengine

import "github.com/sheepbun/yips/internal/model"

// EventType identifies the kind of Event emitted during a turn.
type EventType string

const (
	EventRoundStart         EventType = "round_start"
	EventToken              EventType = "token"
	EventAssistantMessage   EventType = "assistant_message"
	EventToolCallsRequested EventType = "tool_calls_requested"
	EventToolStart          EventType = "tool_start"
	EventToolComplete       EventType = "tool_complete"
	EventTurnComplete       EventType = "turn_complete"
	EventError              EventType = "error"
)

// Event is the payload the turn engine hands to emit_event. Only the fields
// relevant to Type are populated.
type Event struct {
	Type EventType

	// RoundStart
	Round     int
	MaxRounds int

	// Token / AssistantMessage / TurnComplete (the final response)
	Content string

	// AssistantMessage / ToolCallsRequested
	ToolCalls []model.ToolCall

	// ToolStart / ToolComplete
	ToolCallID string
	ToolName   string
	Success    bool
	Output     string

	// TurnComplete
	RoundsUsed int

	// Error
	Message string
}

// EventSink receives turn-engine events. Implementations must not block
// indefinitely; the production adapter forwards to a bounded channel.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a plain function to an EventSink.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Emit(e Event) { f(e) }
