package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"OpenAIChat/internal/backend"
	"OpenAIChat/internal/config"
	"OpenAIChat/internal/telemetry"
	"OpenAIChat/internal/transcript"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	Greeting    = "Chatbot: Hello! How can I help you? Type 'bye' to exit."
	Farewell    = "Chatbot: Goodbye! Take care!"
	Prompt      = "You: "
	ReplyLabel  = "Chatbot: "
	ExitKeyword = "bye"
)

// ErrInputClosed is returned by Run when input ends before the exit keyword
var ErrInputClosed = errors.New("input closed before exit keyword")

// Journal records metadata about completion calls
type Journal interface {
	Record(ctx context.Context, rec telemetry.CompletionRecord) error
}

// ChatBot runs the console conversation
type ChatBot struct {
	client     backend.Completer
	transcript *transcript.Transcript
	model      string
	in         *bufio.Reader
	out        io.Writer
	logger     *slog.Logger
	journal    Journal
	meter      metric.Meter
	turns      metric.Int64Counter
	turn       int
}

// Option customizes a ChatBot
type Option func(*ChatBot)

func WithLogger(logger *slog.Logger) Option {
	return func(cb *ChatBot) { cb.logger = logger }
}

// WithJournal records every completion call in j
func WithJournal(j Journal) Option {
	return func(cb *ChatBot) { cb.journal = j }
}

// WithMeter counts turns on m instead of a no-op meter
func WithMeter(m metric.Meter) Option {
	return func(cb *ChatBot) { cb.meter = m }
}

// New creates a ChatBot that reads from in, writes to out and asks client for replies.
// The transcript is seeded with cfg.SystemPrompt.
func New(cfg config.Config, client backend.Completer, in io.Reader, out io.Writer, opts ...Option) *ChatBot {
	cb := &ChatBot{
		client:     client,
		transcript: transcript.New(cfg.SystemPrompt),
		model:      cfg.Model,
		in:         bufio.NewReader(in),
		out:        out,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		meter:      noop.NewMeterProvider().Meter("chatbot"),
	}
	for _, opt := range opts {
		opt(cb)
	}

	counter, err := cb.meter.Int64Counter(
		"chatbot.turns",
		metric.WithDescription("Completed conversation turns"),
	)
	if err != nil {
		cb.logger.Warn("failed to create turn counter, turns will not be counted", "error", err)
		counter, _ = noop.NewMeterProvider().Meter("chatbot").Int64Counter("chatbot.turns")
	}
	cb.turns = counter

	return cb
}

// Transcript returns a copy of the conversation so far
func (cb *ChatBot) Transcript() []transcript.Message {
	return cb.transcript.Messages()
}

// Run greets the user and loops until the exit keyword is typed.
// Any completion error ends the loop and is returned as-is.
func (cb *ChatBot) Run(ctx context.Context) error {
	fmt.Fprintln(cb.out, Greeting)

	for {
		fmt.Fprint(cb.out, Prompt)
		input, err := cb.readLine()
		if err != nil {
			return err
		}

		if strings.EqualFold(strings.TrimSpace(input), ExitKeyword) {
			fmt.Fprintln(cb.out, Farewell)
			cb.logger.Info("conversation ended", "messages", cb.transcript.Len())
			return nil
		}

		reply, err := cb.exchange(ctx, input)
		if err != nil {
			return err
		}
		fmt.Fprintf(cb.out, "%s%s\n", ReplyLabel, reply)
	}
}

// readLine returns the next input line without its terminator.
// Lines have no length limit; a final line without a newline still counts.
func (cb *ChatBot) readLine() (string, error) {
	line, err := cb.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		if line == "" {
			return "", ErrInputClosed
		}
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// exchange appends the user message, asks for a reply and appends it
func (cb *ChatBot) exchange(ctx context.Context, input string) (string, error) {
	cb.transcript.Append(transcript.RoleUser, input)
	messages := cb.transcript.Messages()
	digest := transcript.Digest(messages)

	start := time.Now()
	reply, err := cb.client.Complete(ctx, messages)
	elapsed := time.Since(start)

	cb.record(ctx, telemetry.CompletionRecord{
		At:           start,
		Model:        cb.model,
		MessageCount: len(messages),
		Digest:       digest,
		Duration:     elapsed,
		Err:          err,
	})

	if err != nil {
		cb.logger.Error("completion failed", "error", err, "turn", cb.turn+1, "messages", len(messages), "digest", digest)
		return "", err
	}

	cb.transcript.Append(transcript.RoleAssistant, reply)
	cb.turn++
	cb.turns.Add(ctx, 1)
	cb.logger.Info("turn completed",
		"turn", cb.turn,
		"messages", cb.transcript.Len(),
		"digest", digest,
		"duration_ms", elapsed.Milliseconds(),
	)
	cb.logger.Debug("reply", "length", len(reply))

	return reply, nil
}

func (cb *ChatBot) record(ctx context.Context, rec telemetry.CompletionRecord) {
	if cb.journal == nil {
		return
	}
	if err := cb.journal.Record(ctx, rec); err != nil {
		cb.logger.Warn("failed to journal completion", "error", err)
	}
}
