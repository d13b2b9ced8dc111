package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	domai "github.com/bryanwahyu/game-advisor/internal/domain/ai"
)

const (
	maxTokens     = 4096
	maxToolRounds = 6
)

// Client adapts the OpenAI chat API to the ai.Provider port. One
// StreamChat call may span several completion requests under the hood:
// every tool round the model asks for is folded into the same logical
// event stream.
type Client struct {
	api         *openai.Client
	model       string
	displayName string
}

func NewClient(apiKey, model, baseURL, displayName string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("openai: model is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if displayName == "" {
		displayName = "OpenAI " + model
	}
	return &Client{api: openai.NewClientWithConfig(cfg), model: model, displayName: displayName}, nil
}

func (c *Client) Name() string { return c.displayName }

// SupportsDelegatedSearch is true for the search-preview model family,
// where retrieval happens on the provider side.
func (c *Client) SupportsDelegatedSearch() bool {
	return strings.Contains(c.model, "search-preview")
}

func (c *Client) StreamChat(ctx context.Context, req domai.ChatRequest) (domai.ChatStream, error) {
	byName := make(map[string]domai.ToolFunc, len(req.Tools))
	for _, t := range req.Tools {
		byName[t.Name] = t.Run
	}

	s := &chatStream{
		events: make(chan domai.StreamEvent, 16),
		done:   make(chan struct{}),
	}
	go c.run(ctx, s, toMessages(req.Messages), toTools(req.Tools), byName)
	return s, nil
}

func (c *Client) run(ctx context.Context, s *chatStream, messages []openai.ChatCompletionMessage, tools []openai.Tool, byName map[string]domai.ToolFunc) {
	defer close(s.events)

	for round := 0; round < maxToolRounds; round++ {
		req := openai.ChatCompletionRequest{
			Model:    c.model,
			Messages: messages,
			Tools:    tools,
		}
		// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
		if strings.HasPrefix(c.model, "o1") || strings.HasPrefix(c.model, "o3") || strings.HasPrefix(c.model, "o4") || strings.HasPrefix(c.model, "gpt-5") {
			req.MaxCompletionTokens = maxTokens
		} else {
			req.MaxTokens = maxTokens
		}
		// search-preview models reject response_format
		if !c.SupportsDelegatedSearch() {
			req.ResponseFormat = &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			}
		}

		stream, err := c.api.CreateChatCompletionStream(ctx, req)
		if err != nil {
			s.fail(mapError(err))
			return
		}

		var text strings.Builder
		var calls []openai.ToolCall
		for {
			resp, rerr := stream.Recv()
			if errors.Is(rerr, io.EOF) {
				break
			}
			if rerr != nil {
				stream.Close()
				s.fail(mapError(rerr))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta
			if delta.Content != "" {
				text.WriteString(delta.Content)
				if !s.emit(domai.StreamEvent{Type: domai.EventTextDelta, Text: delta.Content}) {
					stream.Close()
					return
				}
			}
			for _, tc := range delta.ToolCalls {
				calls = accumulateToolCall(calls, tc)
			}
		}
		stream.Close()

		if len(calls) == 0 {
			s.emit(domai.StreamEvent{Type: domai.EventFinish})
			return
		}

		// tool round: execute every requested call, feed results back,
		// then let the model continue in the next iteration
		messages = append(messages, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   text.String(),
			ToolCalls: calls,
		})
		for _, call := range calls {
			ev := domai.ToolCall{ID: call.ID, Name: call.Function.Name, Arguments: call.Function.Arguments}
			if !s.emit(domai.StreamEvent{Type: domai.EventToolCallStart, Call: ev}) {
				return
			}

			var result string
			var terr error
			if fn, ok := byName[call.Function.Name]; ok {
				result, terr = fn(ctx, call.Function.Arguments)
			} else {
				terr = fmt.Errorf("unknown tool %q", call.Function.Name)
			}
			if terr != nil {
				result = "ERROR: " + terr.Error()
			}

			if !s.emit(domai.StreamEvent{Type: domai.EventToolCallResult, Call: ev, Result: result, Err: terr}) {
				return
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	s.fail(fmt.Errorf("model exceeded %d tool rounds without finishing", maxToolRounds))
}

// accumulateToolCall merges a streamed tool-call fragment into the
// per-index accumulator; names arrive once, arguments in pieces.
func accumulateToolCall(calls []openai.ToolCall, tc openai.ToolCall) []openai.ToolCall {
	idx := len(calls)
	if tc.Index != nil {
		idx = *tc.Index
	}
	for idx >= len(calls) {
		calls = append(calls, openai.ToolCall{Type: openai.ToolTypeFunction})
	}
	if tc.ID != "" {
		calls[idx].ID = tc.ID
	}
	if tc.Function.Name != "" {
		calls[idx].Function.Name += tc.Function.Name
	}
	calls[idx].Function.Arguments += tc.Function.Arguments
	return calls
}

func toMessages(in []domai.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(in))
	for _, m := range in {
		if len(m.Image) == 0 {
			out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
			continue
		}
		dataURL := fmt.Sprintf("data:%s;base64,%s", m.ImageMIME, base64.StdEncoding.EncodeToString(m.Image))
		out = append(out, openai.ChatCompletionMessage{
			Role: m.Role,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: m.Content},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL,
					Detail: openai.ImageURLDetailAuto,
				}},
			},
		})
	}
	return out
}

func toTools(in []domai.Tool) []openai.Tool {
	if len(in) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(in))
	for _, t := range in {
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

func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return fmt.Errorf("%w: %v", domai.ErrQuotaExceeded, err)
	}
	return err
}

// chatStream pumps events from the run goroutine to the consumer.
type chatStream struct {
	events chan domai.StreamEvent
	err    error // set before events is closed

	done      chan struct{}
	closeOnce sync.Once
}

func (s *chatStream) Recv() (domai.StreamEvent, error) {
	ev, ok := <-s.events
	if !ok {
		if s.err != nil {
			return domai.StreamEvent{}, s.err
		}
		return domai.StreamEvent{}, io.EOF
	}
	return ev, nil
}

func (s *chatStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// emit delivers an event unless the consumer has closed the stream.
func (s *chatStream) emit(ev domai.StreamEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *chatStream) fail(err error) {
	s.err = err
}
