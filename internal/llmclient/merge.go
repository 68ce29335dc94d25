package llmclient

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sheepbun/yips/internal/model"
)

// pendingCall accumulates the fragments of one streamed tool call, keyed by
// its delta index. name and arguments are append-only; id replaces.
type pendingCall struct {
	id        string
	name      string
	arguments string
}

// toolCallAccumulator merges streamed tool-call deltas across an entire
// response, indexed by the delta's integer index so finalisation can walk
// them in ascending order.
type toolCallAccumulator struct {
	byIndex map[int]*pendingCall
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{byIndex: make(map[int]*pendingCall)}
}

func (a *toolCallAccumulator) merge(d deltaToolCall) {
	entry, ok := a.byIndex[d.Index]
	if !ok {
		entry = &pendingCall{}
		a.byIndex[d.Index] = entry
	}

	if d.ID != nil && *d.ID != "" {
		entry.id = *d.ID
	}
	if d.Function != nil {
		if d.Function.Name != nil {
			entry.name += *d.Function.Name
		}
		if d.Function.Arguments != nil {
			entry.arguments += *d.Function.Arguments
		}
	}
}

// finalize materializes the accumulated fragments into ToolCalls in
// ascending index order, synthesizing ids and substituting blank arguments
// per spec.md §4.2. Entries with an empty name are dropped.
func (a *toolCallAccumulator) finalize() []model.ToolCall {
	indices := make([]int, 0, len(a.byIndex))
	for idx := range a.byIndex {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var calls []model.ToolCall
	for _, idx := range indices {
		entry := a.byIndex[idx]
		if entry.name == "" {
			continue
		}

		id := entry.id
		if id == "" {
			id = syntheticID(idx)
		}

		arguments := entry.arguments
		if strings.TrimSpace(arguments) == "" {
			arguments = "{}"
		}

		calls = append(calls, model.ToolCall{ID: id, Name: entry.name, Arguments: arguments})
	}
	return calls
}

func syntheticID(index int) string {
	return "call_" + strconv.Itoa(index)
}
