package chatbot_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"OpenAIChat/internal/chatbot"
	"OpenAIChat/internal/config"
	"OpenAIChat/internal/telemetry"
	"OpenAIChat/internal/transcript"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

// stubCompleter replies with a fixed string and remembers what it was sent
type stubCompleter struct {
	reply string
	err   error
	calls [][]transcript.Message
}

func (s *stubCompleter) Complete(_ context.Context, messages []transcript.Message) (string, error) {
	s.calls = append(s.calls, messages)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type memJournal struct {
	recs []telemetry.CompletionRecord
}

func (j *memJournal) Record(_ context.Context, rec telemetry.CompletionRecord) error {
	j.recs = append(j.recs, rec)
	return nil
}

func run(t *testing.T, client *stubCompleter, input string, opts ...chatbot.Option) (*chatbot.ChatBot, string, error) {
	t.Helper()
	var out bytes.Buffer
	cb := chatbot.New(config.Default(), client, strings.NewReader(input), &out, opts...)
	err := cb.Run(context.Background())
	return cb, out.String(), err
}

func TestRun_HelloThenBye(t *testing.T) {
	client := &stubCompleter{reply: "OK"}

	cb, out, err := run(t, client, "hello\nbye\n")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	want := chatbot.Greeting + "\n" +
		"You: " + "Chatbot: OK\n" +
		"You: " + chatbot.Farewell + "\n"
	if out != want {
		t.Fatalf("unexpected output:\n got: %q\nwant: %q", out, want)
	}

	msgs := cb.Transcript()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Role != transcript.RoleSystem || msgs[0].Content != "You are a helpful assistant." {
		t.Fatalf("unexpected system message: %+v", msgs[0])
	}
	if msgs[1].Role != transcript.RoleUser || msgs[1].Content != "hello" {
		t.Fatalf("unexpected user message: %+v", msgs[1])
	}
	if msgs[2].Role != transcript.RoleAssistant || msgs[2].Content != "OK" {
		t.Fatalf("unexpected assistant message: %+v", msgs[2])
	}
}

func TestRun_ByeAnyCaseExitsWithoutCalling(t *testing.T) {
	for _, in := range []string{"bye", "BYE", "Bye", "  bYe  ", "bye\r"} {
		t.Run(in, func(t *testing.T) {
			client := &stubCompleter{reply: "OK"}
			cb, out, err := run(t, client, in+"\n")
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if len(client.calls) != 0 {
				t.Fatalf("expected no completion calls, got %d", len(client.calls))
			}
			if n := len(cb.Transcript()); n != 1 {
				t.Fatalf("expected transcript to hold only the system message, got %d", n)
			}
			if !strings.HasSuffix(out, chatbot.Farewell+"\n") {
				t.Fatalf("expected farewell, got %q", out)
			}
		})
	}
}

func TestRun_GrowsByTwoPerTurnAndSendsFullTranscript(t *testing.T) {
	client := &stubCompleter{reply: "OK"}
	inputs := []string{"one", "two", "", "goodbye", "bye bye"}

	cb, _, err := run(t, client, strings.Join(inputs, "\n")+"\nbye\n")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if len(client.calls) != len(inputs) {
		t.Fatalf("expected %d calls, got %d", len(inputs), len(client.calls))
	}
	for i, sent := range client.calls {
		if len(sent) != 2+2*i {
			t.Fatalf("call %d: expected %d messages, got %d", i, 2+2*i, len(sent))
		}
		last := sent[len(sent)-1]
		if last.Role != transcript.RoleUser || last.Content != inputs[i] {
			t.Fatalf("call %d: unexpected last message %+v", i, last)
		}
	}

	msgs := cb.Transcript()
	if len(msgs) != 1+2*len(inputs) {
		t.Fatalf("expected %d messages, got %d", 1+2*len(inputs), len(msgs))
	}
	if msgs[0].Role != transcript.RoleSystem || msgs[0].Content != config.DefaultSystemPrompt {
		t.Fatalf("system message moved: %+v", msgs[0])
	}
	for i, in := range inputs {
		u, a := msgs[1+2*i], msgs[2+2*i]
		if u.Role != transcript.RoleUser || u.Content != in {
			t.Fatalf("turn %d: unexpected user message %+v", i, u)
		}
		if a.Role != transcript.RoleAssistant || a.Content != "OK" {
			t.Fatalf("turn %d: unexpected assistant message %+v", i, a)
		}
	}
}

func TestRun_CompletionErrorStopsLoop(t *testing.T) {
	boom := errors.New("rate limited")
	client := &stubCompleter{err: boom}

	cb, out, err := run(t, client, "hello\nagain\nbye\n")
	if !errors.Is(err, boom) {
		t.Fatalf("expected completion error, got %v", err)
	}
	if len(client.calls) != 1 {
		t.Fatalf("expected a single call, got %d", len(client.calls))
	}

	want := chatbot.Greeting + "\n" + "You: "
	if out != want {
		t.Fatalf("expected no further prompts after failure:\n got: %q\nwant: %q", out, want)
	}
	if n := len(cb.Transcript()); n != 2 {
		t.Fatalf("expected system and user messages only, got %d", n)
	}
}

func TestRun_InputClosedBeforeBye(t *testing.T) {
	client := &stubCompleter{reply: "OK"}

	_, out, err := run(t, client, "hello\n")
	if !errors.Is(err, chatbot.ErrInputClosed) {
		t.Fatalf("expected ErrInputClosed, got %v", err)
	}
	if strings.Contains(out, chatbot.Farewell) {
		t.Fatalf("farewell printed on closed input: %q", out)
	}
}

func TestRun_JournalsEveryCall(t *testing.T) {
	client := &stubCompleter{reply: "OK"}
	j := &memJournal{}

	_, _, err := run(t, client, "a\nb\nbye\n",
		chatbot.WithJournal(j),
		chatbot.WithMeter(metricnoop.NewMeterProvider().Meter("test")),
	)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(j.recs) != 2 {
		t.Fatalf("expected 2 journal records, got %d", len(j.recs))
	}
	if j.recs[0].MessageCount != 2 || j.recs[1].MessageCount != 4 {
		t.Fatalf("unexpected message counts: %d, %d", j.recs[0].MessageCount, j.recs[1].MessageCount)
	}
	if j.recs[0].Model != config.DefaultModel || j.recs[0].Digest == "" || j.recs[0].Err != nil {
		t.Fatalf("unexpected record: %+v", j.recs[0])
	}
}

func TestRun_JournalsFailedCall(t *testing.T) {
	client := &stubCompleter{err: errors.New("unauthorized")}
	j, err := telemetry.OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer j.Close()

	if _, _, err := run(t, client, "hello\n", chatbot.WithJournal(j)); err == nil {
		t.Fatal("expected error")
	}
	if n, _ := j.Count(context.Background()); n != 1 {
		t.Fatalf("expected failed call to be journaled, got %d rows", n)
	}
}

func TestRun_VeryLongLineIsSentWhole(t *testing.T) {
	client := &stubCompleter{reply: "OK"}
	long := strings.Repeat("a", 2*1024*1024)

	_, _, err := run(t, client, long+"\nbye\n")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(client.calls) != 1 {
		t.Fatalf("expected one call, got %d", len(client.calls))
	}
	if got := client.calls[0][1].Content; len(got) != len(long) {
		t.Fatalf("expected %d bytes sent, got %d", len(long), len(got))
	}
}

func TestRun_FinalLineWithoutNewline(t *testing.T) {
	client := &stubCompleter{reply: "OK"}

	_, out, err := run(t, client, "hello\nbye")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(client.calls) != 1 || !strings.HasSuffix(out, chatbot.Farewell+"\n") {
		t.Fatalf("expected one call and a farewell, got %d calls, output %q", len(client.calls), out)
	}
}

// brokenMeter fails to create counters
type brokenMeter struct {
	metricnoop.Meter
}

func (brokenMeter) Int64Counter(string, ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return nil, errors.New("instrument rejected")
}

func TestNew_CounterFailureIsLoggedAndChatStillWorks(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	client := &stubCompleter{reply: "OK"}

	_, _, err := run(t, client, "hello\nbye\n",
		chatbot.WithMeter(brokenMeter{}),
		chatbot.WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !strings.Contains(logs.String(), "failed to create turn counter") ||
		!strings.Contains(logs.String(), "instrument rejected") {
		t.Fatalf("expected counter failure warning, logs:\n%s", logs.String())
	}
}

func TestRun_LogsTurnNumber(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	client := &stubCompleter{reply: "OK"}

	if _, _, err := run(t, client, "one\ntwo\nbye\n", chatbot.WithLogger(logger)); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	for _, want := range []string{`"turn":1`, `"turn":2`} {
		if !strings.Contains(logs.String(), want) {
			t.Fatalf("expected %s in logs:\n%s", want, logs.String())
		}
	}
}
