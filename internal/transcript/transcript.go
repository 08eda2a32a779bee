package transcript

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Role tags the speaker of a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single chat message
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is the ordered conversation history of one process run.
// The first message is always the system prompt it was created with.
type Transcript struct {
	messages []Message
}

// New creates a transcript seeded with a single system message
func New(systemPrompt string) *Transcript {
	return &Transcript{
		messages: []Message{{
			Role:      RoleSystem,
			Content:   systemPrompt,
			Timestamp: time.Now(),
		}},
	}
}

// Append adds a message to the end of the transcript
func (t *Transcript) Append(role Role, content string) Message {
	msg := Message{Role: role, Content: content, Timestamp: time.Now()}
	t.messages = append(t.messages, msg)
	return msg
}

// Messages returns a copy of the messages in chronological order
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len reports the number of messages, system message included
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Digest fingerprints a message sequence. Timestamps are ignored.
// Content is length-prefixed so message boundaries are part of the hash.
func Digest(messages []Message) string {
	h := sha256.New()
	for _, msg := range messages {
		fmt.Fprintf(h, "%s\x00%d\x00%s", msg.Role, len(msg.Content), msg.Content)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Digest fingerprints the current transcript
func (t *Transcript) Digest() string {
	return Digest(t.messages)
}
