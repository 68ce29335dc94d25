package daemon

import (
	"context"

	"github.com/sheepbun/yips/internal/llmclient"
	"github.com/sheepbun/yips/internal/model"
	"github.com/sheepbun/yips/internal/tools"
	"github.com/sheepbun/yips/internal/turnengine"
	"github.com/sheepbun/yips/internal/wire"
)

// connDependencies adapts a single connection's LLM client, tool registry,
// and outbound channel into the turnengine.Dependencies capability set,
// translating engine events into wire.DaemonMessage values. One instance is
// built per Chat request (it is specific to a session_id).
type connDependencies struct {
	ctx              context.Context
	sessionID        string
	workingDirectory string
	llm              *llmclient.Client
	registry         *tools.Registry
	out              chan<- wire.DaemonMessage
}

func (d *connDependencies) ChatCompletion(ctx context.Context, messages []model.Message, toolDefs []model.ToolDefinition) (turnengine.Response, error) {
	resp, err := d.llm.ChatStream(ctx, messages, toolDefs, func(token string) {
		d.EmitEvent(turnengine.Event{Type: turnengine.EventToken, Content: token})
	})
	if err != nil {
		return turnengine.Response{}, err
	}
	return turnengine.Response{Content: resp.Content, ToolCalls: resp.ToolCalls}, nil
}

func (d *connDependencies) ExecuteTool(ctx context.Context, name, argumentsJSON string) (model.ToolOutput, error) {
	ctx = tools.WithInvocation(ctx, tools.Invocation{SessionID: d.sessionID, WorkingDirectory: d.workingDirectory})
	return d.registry.Execute(ctx, name, argumentsJSON)
}

func (d *connDependencies) AvailableTools() []model.ToolDefinition {
	return d.registry.Definitions()
}

func (d *connDependencies) EmitEvent(e turnengine.Event) {
	var msg wire.DaemonMessage
	switch e.Type {
	case turnengine.EventToken:
		msg = wire.NewToken(d.sessionID, e.Content)
	case turnengine.EventAssistantMessage:
		msg = wire.NewAssistantMessage(d.sessionID, e.Content, e.ToolCalls)
	case turnengine.EventToolStart:
		msg = wire.NewToolStart(d.sessionID, e.ToolCallID, e.ToolName)
	case turnengine.EventToolComplete:
		msg = wire.NewToolResult(d.sessionID, e.ToolCallID, e.Success, e.Output)
	default:
		// RoundStart, ToolCallsRequested, TurnComplete, and Error have no
		// wire send here: RoundStart/ToolCallsRequested exist only for test
		// observability of the engine's internal ordering, and
		// TurnComplete/Error are sent exactly once by connection.go after
		// Run returns, per spec.md §8 Testable Property 3 ("TurnComplete/
		// Error appearing exactly once and last"). Emitting them here too
		// would send each turn's terminal message twice.
		return
	}

	// A blocking send applies backpressure to the engine when the
	// connection's writer/reader stalls, per spec.md §5; it unblocks early
	// only if the turn itself is cancelled.
	select {
	case d.out <- msg:
	case <-d.ctx.Done():
	}
}
