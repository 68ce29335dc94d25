// Package wire defines the tagged-JSON IPC message shapes exchanged between
// a client and the daemon over a framed Unix domain socket connection, and
// the framing codec itself.
package wire

import "github.com/sheepbun/yips/internal/model"

// ClientMessage is a tagged union of requests a client may send. Type
// selects which of the payload fields are populated; unused fields are
// omitted from the wire form via their own `omitempty` tags.
type ClientMessage struct {
	Type string `json:"type"`

	// Chat
	SessionID        string `json:"session_id,omitempty"`
	Message          string `json:"message,omitempty"`
	WorkingDirectory string `json:"working_directory,omitempty"`

	// Cancel reuses SessionID above.
}

const (
	ClientChat         = "Chat"
	ClientListSessions = "ListSessions"
	ClientCancel       = "Cancel"
	ClientStatus       = "Status"
	ClientShutdown     = "Shutdown"
)

// CancelOutcome enumerates the result of a Cancel request.
type CancelOutcome string

const (
	CancelledActiveTurn CancelOutcome = "CancelledActiveTurn"
	NoActiveTurn        CancelOutcome = "NoActiveTurn"
)

// CancelOrigin identifies what triggered a cancellation.
type CancelOrigin string

const (
	OriginUserRequest         CancelOrigin = "UserRequest"
	OriginSupersededByNewChat CancelOrigin = "SupersededByNewChat"
)

// SessionSummary is the list_info() view of a session.
type SessionSummary struct {
	ID           string `json:"id"`
	CreatedAt    string `json:"created_at"`
	MessageCount int    `json:"message_count"`
}

// DaemonMessage is a tagged union of events/responses the daemon sends back.
type DaemonMessage struct {
	Type string `json:"type"`

	SessionID string `json:"session_id,omitempty"`

	// Token
	Token string `json:"token,omitempty"`

	// AssistantMessage
	Content   string           `json:"content,omitempty"`
	ToolCalls []model.ToolCall `json:"tool_calls,omitempty"`

	// ToolStart / ToolResult
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	Success    bool   `json:"success,omitempty"`
	Output     string `json:"output,omitempty"`

	// TurnComplete
	RoundCount int `json:"round_count,omitempty"`

	// CancelResult
	Outcome CancelOutcome `json:"outcome,omitempty"`
	Origin  CancelOrigin  `json:"origin,omitempty"`

	// Error
	Message string `json:"message,omitempty"`

	// StatusResponse
	ActiveSessions []string `json:"active_sessions,omitempty"`
	LLMConnected   bool     `json:"llm_connected,omitempty"`

	// SessionList
	Sessions []SessionSummary `json:"sessions,omitempty"`
}

const (
	DaemonToken            = "Token"
	DaemonAssistantMessage = "AssistantMessage"
	DaemonToolStart        = "ToolStart"
	DaemonToolResult       = "ToolResult"
	DaemonTurnComplete     = "TurnComplete"
	DaemonCancelResult     = "CancelResult"
	DaemonError            = "Error"
	DaemonStatusResponse   = "StatusResponse"
	DaemonSessionList      = "SessionList"
)

func NewToken(sessionID, token string) DaemonMessage {
	return DaemonMessage{Type: DaemonToken, SessionID: sessionID, Token: token}
}

func NewAssistantMessage(sessionID, content string, toolCalls []model.ToolCall) DaemonMessage {
	return DaemonMessage{Type: DaemonAssistantMessage, SessionID: sessionID, Content: content, ToolCalls: toolCalls}
}

func NewToolStart(sessionID, toolCallID, toolName string) DaemonMessage {
	return DaemonMessage{Type: DaemonToolStart, SessionID: sessionID, ToolCallID: toolCallID, ToolName: toolName}
}

func NewToolResult(sessionID, toolCallID string, success bool, output string) DaemonMessage {
	return DaemonMessage{Type: DaemonToolResult, SessionID: sessionID, ToolCallID: toolCallID, Success: success, Output: output}
}

func NewTurnComplete(sessionID string, roundCount int) DaemonMessage {
	return DaemonMessage{Type: DaemonTurnComplete, SessionID: sessionID, RoundCount: roundCount}
}

func NewCancelResult(sessionID string, outcome CancelOutcome, origin CancelOrigin) DaemonMessage {
	return DaemonMessage{Type: DaemonCancelResult, SessionID: sessionID, Outcome: outcome, Origin: origin}
}

func NewError(sessionID, message string) DaemonMessage {
	return DaemonMessage{Type: DaemonError, SessionID: sessionID, Message: message}
}

func NewStatusResponse(activeSessions []string, llmConnected bool) DaemonMessage {
	return DaemonMessage{Type: DaemonStatusResponse, ActiveSessions: activeSessions, LLMConnected: llmConnected}
}

func NewSessionList(sessions []SessionSummary) DaemonMessage {
	return DaemonMessage{Type: DaemonSessionList, Sessions: sessions}
}
