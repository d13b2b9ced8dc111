package ai

// EventType enum for the stream union.
type EventType string

const (
	EventTextDelta      EventType = "text_delta"
	EventToolCallStart  EventType = "tool_call_start"
	EventToolCallResult EventType = "tool_call_result"
	EventFinish         EventType = "finish"
)

// ToolCall identifies one model-initiated function invocation.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// StreamEvent is the minimal event union shared by all providers. A
// provider without native streaming wraps its whole answer as one
// TextDelta followed by Finish.
type StreamEvent struct {
	Type EventType

	// EventTextDelta
	Text string

	// EventToolCallStart / EventToolCallResult
	Call ToolCall
	// EventToolCallResult only
	Result string
	Err    error
}
