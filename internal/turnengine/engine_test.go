package turnengine

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/sheepbun/yips/internal/apperrors"
	"github.com/sheepbun/yips/internal/model"
)

// fakeDeps is a test double queuing canned ChatCompletion responses and
// recording emitted events in order, mirroring the teacher's agent test
// fakes rather than introducing an assertion library.
type fakeDeps struct {
	mu        sync.Mutex
	responses []Response
	toolFunc  func(name, args string) (model.ToolOutput, error)
	tools     []model.ToolDefinition
	events    []Event
	calls     int
}

func (f *fakeDeps) ChatCompletion(_ context.Context, _ []model.Message, _ []model.ToolDefinition) (Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= len(f.responses) {
		return Response{}, apperrors.ErrMaxRoundsExceeded
	}
	r := f.responses[f.calls]
	f.calls++
	return r, nil
}

func (f *fakeDeps) ExecuteTool(_ context.Context, name, args string) (model.ToolOutput, error) {
	if f.toolFunc != nil {
		return f.toolFunc(name, args)
	}
	return model.ToolOutput{Success: true, Content: "ok"}, nil
}

func (f *fakeDeps) AvailableTools() []model.ToolDefinition { return f.tools }

func (f *fakeDeps) EmitEvent(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func TestSimpleResponseNoTools(t *testing.T) {
	deps := &fakeDeps{responses: []Response{{Content: "Hello!"}}}
	engine := New(DefaultConfig(), deps)

	result, err := engine.Run(context.Background(), []model.Message{{Role: model.RoleUser, Content: "Hi"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.RoundsUsed != 1 {
		t.Fatalf("RoundsUsed = %d, want 1", result.RoundsUsed)
	}

	last := result.Messages[len(result.Messages)-1]
	if last.Role != model.RoleAssistant || last.Content != "Hello!" {
		t.Fatalf("final message = %+v", last)
	}

	wantTypes := []EventType{EventRoundStart, EventAssistantMessage, EventTurnComplete}
	assertEventTypes(t, deps.events, wantTypes)
}

func TestToolCallThenResponse(t *testing.T) {
	deps := &fakeDeps{
		responses: []Response{
			{Content: "Let me read", ToolCalls: []model.ToolCall{{ID: "c1", Name: "read_file", Arguments: `{"path":"t.txt"}`}}},
			{Content: "Done"},
		},
		toolFunc: func(name, args string) (model.ToolOutput, error) {
			if name != "read_file" {
				t.Fatalf("unexpected tool name %q", name)
			}
			return model.ToolOutput{Success: true, Content: "hello"}, nil
		},
	}
	engine := New(DefaultConfig(), deps)

	result, err := engine.Run(context.Background(), []model.Message{{Role: model.RoleUser, Content: "read t.txt"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.RoundsUsed != 2 {
		t.Fatalf("RoundsUsed = %d, want 2", result.RoundsUsed)
	}

	wantTypes := []EventType{
		EventRoundStart,
		EventAssistantMessage,
		EventToolCallsRequested,
		EventToolStart,
		EventToolComplete,
		EventRoundStart,
		EventAssistantMessage,
		EventTurnComplete,
	}
	assertEventTypes(t, deps.events, wantTypes)

	for _, e := range deps.events {
		if e.Type == EventToolComplete {
			if !e.Success || e.Output != "hello" {
				t.Fatalf("ToolComplete event = %+v", e)
			}
		}
	}
}

func TestMaxRoundsExceeded(t *testing.T) {
	responses := make([]Response, 0, 10)
	for i := 0; i < 10; i++ {
		responses = append(responses, Response{
			ToolCalls: []model.ToolCall{{ID: "c", Name: "noop", Arguments: "{}"}},
		})
	}
	deps := &fakeDeps{responses: responses}
	engine := New(DefaultConfig(), deps)

	_, err := engine.Run(context.Background(), []model.Message{{Role: model.RoleUser, Content: "go"}})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "max rounds exceeded") {
		t.Fatalf("err = %v, want max rounds exceeded", err)
	}

	roundStarts := 0
	for _, e := range deps.events {
		if e.Type == EventRoundStart {
			roundStarts++
		}
	}
	if roundStarts != deps.calls {
		t.Fatalf("roundStarts = %d, want %d (one per ChatCompletion call before the bound hit)", roundStarts, deps.calls)
	}

	last := deps.events[len(deps.events)-1]
	if last.Type != EventError || !strings.Contains(last.Message, "Max rounds") {
		t.Fatalf("last event = %+v", last)
	}
}

func TestPivotHintAfterConsecutiveFailures(t *testing.T) {
	responses := []Response{
		{ToolCalls: []model.ToolCall{{ID: "c1", Name: "fail_tool", Arguments: "{}"}}},
		{ToolCalls: []model.ToolCall{{ID: "c2", Name: "fail_tool", Arguments: "{}"}}},
		{Content: "giving up"},
	}
	deps := &fakeDeps{
		responses: responses,
		toolFunc: func(string, string) (model.ToolOutput, error) {
			return model.ToolOutput{Success: false, Content: "Error: boom"}, nil
		},
	}
	engine := New(DefaultConfig(), deps)

	result, err := engine.Run(context.Background(), []model.Message{{Role: model.RoleUser, Content: "try"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	found := false
	for _, m := range result.Messages {
		if m.Role == model.RoleSystem && strings.HasPrefix(m.Content, "Multiple consecutive tool failures") {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a pivot-hint system message after 2 consecutive tool failures")
	}
}

func assertEventTypes(t *testing.T, events []Event, want []EventType) {
	t.Helper()
	if len(events) != len(want) {
		t.Fatalf("event count = %d, want %d (%+v)", len(events), len(want), events)
	}
	for i, e := range events {
		if e.Type != want[i] {
			t.Fatalf("event[%d].Type = %q, want %q", i, e.Type, want[i])
		}
	}
}
