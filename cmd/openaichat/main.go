package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"OpenAIChat/internal/backend"
	"OpenAIChat/internal/chatbot"
	"OpenAIChat/internal/config"
	"OpenAIChat/internal/telemetry"

	"github.com/fatih/color"
)

func main() {
	os.Exit(exitCode(run(config.Load(), os.Stdin, os.Stdout), os.Stderr))
}

// exitCode prints err in red to stderr and maps it to the process exit status
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	color.New(color.FgRed).Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func run(cfg config.Config, in io.Reader, out io.Writer) error {
	ctx := context.Background()

	logger, closeLog, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLog()

	tracer, meter, shutdown, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdown()

	client, err := backend.NewOpenAIClient(cfg, tracer, meter)
	if err != nil {
		return fmt.Errorf("failed to initialize completion client: %w", err)
	}

	opts := []chatbot.Option{chatbot.WithLogger(logger), chatbot.WithMeter(meter)}
	if cfg.JournalPath != "" {
		journal, err := telemetry.OpenJournal(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer journal.Close()
		opts = append(opts, chatbot.WithJournal(journal))
	}

	logger.Info("starting chat", "model", cfg.Model, "base_url", cfg.BaseURL, "journal", cfg.JournalPath)

	bot := chatbot.New(cfg, client, in, out, opts...)
	if err := bot.Run(ctx); err != nil {
		logger.Error("chat ended with error", slog.Any("error", err))
		return err
	}
	return nil
}
