// Package turnengine implements the bounded ReAct loop: reason (LLM call),
// act (tool dispatch), observe (append results), repeat until a final
// answer or a round/failure bound is hit.
package turnengine

import (
	"context"
	"fmt"

	"github.com/sheepbun/yips/internal/apperrors"
	"github.com/sheepbun/yips/internal/model"
)

// Config bounds a turn's iteration.
type Config struct {
	MaxRounds             int
	FailurePivotThreshold int
}

// DefaultConfig matches spec.md §4.5's defaults.
func DefaultConfig() Config {
	return Config{MaxRounds: 6, FailurePivotThreshold: 2}
}

// Response is what chat_completion returns: accumulated content plus any
// reassembled tool calls for this round.
type Response struct {
	Content   string
	ToolCalls []model.ToolCall
}

// Dependencies is the capability set the engine needs from its caller: an
// LLM, a tool dispatcher, and an event sink. Production wiring streams the
// LLM and forwards events to a connection's outbound channel; tests supply
// a fake with queued canned responses.
type Dependencies interface {
	ChatCompletion(ctx context.Context, messages []model.Message, tools []model.ToolDefinition) (Response, error)
	ExecuteTool(ctx context.Context, name, argumentsJSON string) (model.ToolOutput, error)
	AvailableTools() []model.ToolDefinition
	EmitEvent(Event)
}

// Result is what a successful or failed Run returns to the caller.
type Result struct {
	Messages   []model.Message
	RoundsUsed int
}

// Engine drives one turn over a message log.
type Engine struct {
	cfg  Config
	deps Dependencies
}

func New(cfg Config, deps Dependencies) *Engine {
	return &Engine{cfg: cfg, deps: deps}
}

// Run executes the ReAct loop over messages (a snapshot the caller owns;
// Run never mutates its argument, it returns the extended log). It
// terminates on a final assistant response, a round-bound violation, or a
// cancelled context.
func (e *Engine) Run(ctx context.Context, messages []model.Message) (Result, error) {
	log := append([]model.Message(nil), messages...)
	tools := e.deps.AvailableTools()

	roundsUsed := 0
	consecutiveFailures := 0

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, apperrors.ErrCancelled
		}

		roundsUsed++
		if roundsUsed > e.cfg.MaxRounds {
			msg := fmt.Sprintf("Max rounds (%d) exceeded", e.cfg.MaxRounds)
			e.deps.EmitEvent(Event{Type: EventError, Message: msg})
			return Result{}, fmt.Errorf("%w: %s", apperrors.ErrMaxRoundsExceeded, msg)
		}

		e.deps.EmitEvent(Event{Type: EventRoundStart, Round: roundsUsed, MaxRounds: e.cfg.MaxRounds})

		resp, err := e.deps.ChatCompletion(ctx, log, tools)
		if err != nil {
			if ctx.Err() != nil {
				// The failure is a side effect of cancellation (the LLM
				// request's own context was torn down), not a genuine LLM
				// error: report Cancelled, with no wire Error, per
				// spec.md §7.
				return Result{}, apperrors.ErrCancelled
			}
			e.deps.EmitEvent(Event{Type: EventError, Message: err.Error()})
			return Result{}, err
		}

		if len(resp.ToolCalls) == 0 {
			if resp.Content != "" {
				e.deps.EmitEvent(Event{Type: EventAssistantMessage, Content: resp.Content})
			}
			log = append(log, model.Message{Role: model.RoleAssistant, Content: resp.Content})
			e.deps.EmitEvent(Event{Type: EventTurnComplete, RoundsUsed: roundsUsed, Content: resp.Content})
			return Result{Messages: log, RoundsUsed: roundsUsed}, nil
		}

		if resp.Content != "" {
			e.deps.EmitEvent(Event{Type: EventAssistantMessage, Content: resp.Content})
		}
		e.deps.EmitEvent(Event{Type: EventToolCallsRequested, ToolCalls: resp.ToolCalls})
		log = append(log, model.Message{Role: model.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})

		anyFailed := false
		for _, call := range resp.ToolCalls {
			e.deps.EmitEvent(Event{Type: EventToolStart, ToolCallID: call.ID, ToolName: call.Name})

			output, err := e.deps.ExecuteTool(ctx, call.Name, call.Arguments)
			if err != nil {
				output = model.ToolOutput{Success: false, Content: "Error: " + err.Error()}
			}
			if !output.Success {
				anyFailed = true
			}

			e.deps.EmitEvent(Event{
				Type:       EventToolComplete,
				ToolCallID: call.ID,
				ToolName:   call.Name,
				Success:    output.Success,
				Output:     output.Content,
			})

			log = append(log, model.Message{
				Role:       model.RoleTool,
				Content:    output.Content,
				ToolCallID: call.ID,
			})
		}

		if anyFailed {
			consecutiveFailures++
			if consecutiveFailures >= e.cfg.FailurePivotThreshold {
				log = append(log, model.Message{
					Role:    model.RoleSystem,
					Content: "Multiple consecutive tool failures detected. Consider a different approach.",
				})
				consecutiveFailures = 0
			}
		} else {
			consecutiveFailures = 0
		}
	}
}
