package ai

import "context"

// Message roles follow the usual chat convention.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn. Image, when set, is sent alongside Content
// as a vision input.
type Message struct {
	Role      string
	Content   string
	Image     []byte
	ImageMIME string
}

// ToolFunc executes one model-requested tool call and returns the text
// handed back to the model.
type ToolFunc func(ctx context.Context, arguments string) (string, error)

// Tool declares one callable function exposed to the model.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON schema object for the arguments.
	Parameters map[string]any
	Run        ToolFunc
}

// ChatRequest drives one streamed model turn. Tools is empty for
// strategies that expose no callable functions.
type ChatRequest struct {
	Messages []Message
	Tools    []Tool
}

// ChatStream is a pull iterator over stream events. Recv blocks until
// the next event; after EventFinish, further Recv calls return io.EOF.
type ChatStream interface {
	Recv() (StreamEvent, error)
	Close() error
}

// Provider port (interface untuk model provider)
type Provider interface {
	// Name is the display name recorded on the final Recommendation.
	Name() string
	StreamChat(ctx context.Context, req ChatRequest) (ChatStream, error)
	// SupportsDelegatedSearch reports whether retrieval happens inside
	// the provider endpoint itself.
	SupportsDelegatedSearch() bool
}
