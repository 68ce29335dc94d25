package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sheepbun/yips/internal/apperrors"
	"github.com/sheepbun/yips/internal/model"
)

// Client talks to an OpenAI-compatible chat-completions backend over HTTP.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
}

// New creates a Client pointing at baseURL (e.g. http://127.0.0.1:8080).
func New(baseURL, modelName string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   modelName,
		http:    httpClient,
	}
}

func (c *Client) completionsURL() string {
	return c.baseURL + "/v1/chat/completions"
}

// HealthCheck reports whether the backend is reachable: GET /health,
// falling back to GET /v1/models if the former does not answer 2xx.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.probe(ctx, "/health") {
		return nil
	}
	if c.probe(ctx, "/v1/models") {
		return nil
	}
	return &apperrors.LLMError{Status: 0, Body: "backend health check failed"}
}

func (c *Client) probe(ctx context.Context, path string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func toOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []model.ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func fromOpenAIToolCalls(calls []openai.ToolCall) []model.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]model.ToolCall, 0, len(calls))
	for _, tc := range calls {
		out = append(out, model.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return out
}

func (c *Client) buildRequestBody(messages []model.Message, tools []model.ToolDefinition, stream bool) ([]byte, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
		Tools:    toOpenAITools(tools),
		Stream:   stream,
	}
	return json.Marshal(req)
}

// Chat performs a non-streaming chat-completion call.
func (c *Client) Chat(ctx context.Context, messages []model.Message, tools []model.ToolDefinition) (Response, error) {
	body, err := c.buildRequestBody(messages, tools, false)
	if err != nil {
		return Response{}, &apperrors.LLMError{Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL(), bytes.NewReader(body))
	if err != nil {
		return Response{}, &apperrors.LLMError{Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, &apperrors.LLMError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return Response{}, &apperrors.LLMError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var completion openai.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return Response{}, &apperrors.LLMError{Cause: err}
	}
	if len(completion.Choices) == 0 {
		return Response{}, &apperrors.LLMError{Cause: fmt.Errorf("chat completion returned no choices")}
	}

	choice := completion.Choices[0]
	return Response{
		Content:   choice.Message.Content,
		ToolCalls: fromOpenAIToolCalls(choice.Message.ToolCalls),
	}, nil
}

// TokenFunc is invoked once per delta.content fragment as it arrives, so a
// caller can forward incremental tokens before the stream concludes.
type TokenFunc func(token string)

// ChatStream performs a streaming chat-completion call, reassembling
// fragmented tool calls per spec.md §4.2, and invoking onToken for every
// content delta as it is received.
func (c *Client) ChatStream(ctx context.Context, messages []model.Message, tools []model.ToolDefinition, onToken TokenFunc) (Response, error) {
	body, err := c.buildRequestBody(messages, tools, true)
	if err != nil {
		return Response{}, &apperrors.LLMError{Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL(), bytes.NewReader(body))
	if err != nil {
		return Response{}, &apperrors.LLMError{Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, &apperrors.LLMError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return Response{}, &apperrors.LLMError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var content strings.Builder
	acc := newToolCallAccumulator()
	reader := newSSEReader(resp.Body)

	for {
		sc, ok := reader.next()
		if !ok {
			break
		}
		if sc.err != nil {
			// A malformed line is non-fatal; skip and keep reading.
			continue
		}
		if len(sc.data.Choices) == 0 {
			continue
		}

		d := sc.data.Choices[0].Delta
		if d.Content != nil && *d.Content != "" {
			content.WriteString(*d.Content)
			if onToken != nil {
				onToken(*d.Content)
			}
		}
		for _, tc := range d.ToolCalls {
			acc.merge(tc)
		}
	}

	if err := reader.Err(); err != nil {
		// The stream ended on a real transport failure (connection reset,
		// or the request's ctx being cancelled closing resp.Body), not a
		// clean [DONE]/EOF; a silently truncated Response would otherwise
		// look like a successful turn.
		return Response{}, &apperrors.LLMError{Cause: err}
	}

	return Response{Content: content.String(), ToolCalls: acc.finalize()}, nil
}
