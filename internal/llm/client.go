// Package llm provides the text-generation client used for drafting
// replies, summarizing structured tool output, and model-based planning.
package llm

import "context"

// Message represents a chat message for the model.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// StreamCallback is called for each streamed token.
type StreamCallback func(token string)

// Client is the interface a text-generation backend must implement.
type Client interface {
	// Chat sends a chat request and returns the full reply text.
	Chat(ctx context.Context, messages []Message) (string, error)

	// ChatStream sends a chat request, delivering tokens to callback as
	// they arrive. Returns the full reply text.
	ChatStream(ctx context.Context, messages []Message, callback StreamCallback) (string, error)

	// Ping checks if the backend is reachable.
	Ping(ctx context.Context) error
}

// Unavailable is the sentinel reply returned by Drafter when the backend
// cannot be reached. Callers surface it as-is rather than failing a run.
const Unavailable = "(drafting backend unavailable)"

// Drafter wraps a Client with the degrade-gracefully drafting contract:
// Draft never returns an error, only text or the Unavailable sentinel.
type Drafter struct {
	client Client
}

// NewDrafter creates a Drafter over the given client. A nil client is
// permitted and always yields the Unavailable sentinel.
func NewDrafter(client Client) *Drafter {
	return &Drafter{client: client}
}

// Draft sends a single-prompt request and returns the reply text, or the
// Unavailable sentinel when the backend is unreachable.
func (d *Drafter) Draft(ctx context.Context, prompt string) string {
	return d.DraftStream(ctx, prompt, nil)
}

// DraftStream is Draft with incremental token delivery. The callback may
// be nil.
func (d *Drafter) DraftStream(ctx context.Context, prompt string, callback StreamCallback) string {
	if d == nil || d.client == nil {
		return Unavailable
	}

	messages := []Message{{Role: "user", Content: prompt}}
	reply, err := d.client.ChatStream(ctx, messages, callback)
	if err != nil || reply == "" {
		return Unavailable
	}
	return reply
}
