package backend

import (
	"context"

	"OpenAIChat/internal/transcript"
)

// Completer produces one assistant reply for a conversation
type Completer interface {
	Complete(ctx context.Context, messages []transcript.Message) (string, error)
}
