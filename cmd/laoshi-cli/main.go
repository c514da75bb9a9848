// laoshi-cli is a terminal client for the Chinese Tutor API: text chat turns
// with teaching annotations, and voice turns recorded from the microphone
// and played back through the speakers.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/laoshi-app/laoshi-go/internal/secretstore"
	laoshi "github.com/laoshi-app/laoshi-go/sdk"
)

type config struct {
	BaseURL    string `env:"LAOSHI_BASE_URL" envDefault:"http://localhost:8000"`
	Username   string `env:"LAOSHI_USERNAME"`
	Password   string `env:"LAOSHI_PASSWORD"`
	Level      string `env:"LAOSHI_LEVEL" envDefault:"beginner"`
	Scenario   string `env:"LAOSHI_SCENARIO" envDefault:"restaurant"`
	SourceLang string `env:"LAOSHI_SOURCE_LANG" envDefault:"en"`
	TargetLang string `env:"LAOSHI_TARGET_LANG" envDefault:"zh"`
	Debug      bool   `env:"LAOSHI_DEBUG"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := secretstore.Open()
	if err != nil {
		return fmt.Errorf("open secret store: %w", err)
	}

	client := laoshi.NewClient(
		laoshi.WithBaseURL(cfg.BaseURL),
		laoshi.WithSecureStore(store),
		laoshi.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ensureSession(ctx, client, cfg); err != nil {
		return err
	}
	defer client.Session.Logout(context.Background())

	recorder := laoshi.NewMalgoRecorder()
	defer recorder.Close()
	playback := laoshi.NewPlaybackManager(laoshi.NewOtoBackend(nil), logger)

	machine := laoshi.NewTurnMachine(client, recorder, playback, laoshi.TurnConfig{
		SourceLang: cfg.SourceLang,
		TargetLang: cfg.TargetLang,
		Scenario:   cfg.Scenario,
		Level:      laoshi.Level(cfg.Level),
	})
	defer machine.Close()

	conversation := laoshi.NewConversation()

	fmt.Println("laoshi: type a message, /voice for a voice turn, /quit to exit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/voice":
			voiceTurn(ctx, machine, scanner)
		default:
			chatTurn(ctx, client, conversation, line, laoshi.Level(cfg.Level))
		}
	}
}

func ensureSession(ctx context.Context, client *laoshi.Client, cfg config) error {
	// A stored refresh token from a previous run resumes the session
	// without prompting for credentials.
	if client.Session.RefreshSession(ctx) {
		return nil
	}
	if cfg.Username == "" || cfg.Password == "" {
		return errors.New("no stored session; set LAOSHI_USERNAME and LAOSHI_PASSWORD")
	}
	return client.Session.Login(ctx, cfg.Username, cfg.Password)
}

func chatTurn(ctx context.Context, client *laoshi.Client, conversation *laoshi.Conversation, text string, level laoshi.Level) {
	conversation.AddUserMessage(text)
	placeholder := conversation.AddTypingPlaceholder()

	resp, err := client.Chat.Send(ctx, text, level)
	if err != nil {
		conversation.Remove(placeholder.ID)
		fmt.Println("  !", err)
		return
	}

	// Reveal the reply the way the app does, one rune at a time.
	done := conversation.StreamText(placeholder.ID, resp.Reply, resp.Teaching, 25*time.Millisecond)
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			msgs := conversation.Messages()
			fmt.Printf("\r  %s", msgs[len(msgs)-1].Text)
		case <-done:
			fmt.Printf("\r  %s\n", resp.Reply)
			printTeaching(resp.Teaching)
			return
		}
	}
}

func printTeaching(t *laoshi.Teaching) {
	if t == nil {
		return
	}
	fmt.Println("    ", t.Pinyin)
	fmt.Println("    ", t.Translation)
	for _, kp := range t.KeyPoints {
		fmt.Printf("      %s (%s): %s\n", kp.Phrase, kp.Pinyin, kp.Meaning)
	}
	if t.FollowUp != "" {
		fmt.Println("    →", t.FollowUp)
	}
}

func voiceTurn(ctx context.Context, machine *laoshi.TurnMachine, scanner *bufio.Scanner) {
	if err := machine.PressIn(ctx); err != nil {
		fmt.Println("  !", err)
		return
	}
	fmt.Print("  recording... press enter to stop ")
	if !scanner.Scan() {
		machine.Cancel()
		return
	}

	result, err := machine.PressOut(ctx)
	if err != nil {
		fmt.Println("  !", err)
		// The text result survives audio failures.
	}
	if result != nil {
		fmt.Println("  heard:  ", result.Transcript)
		if result.Chinese != "" {
			fmt.Println("  chinese:", result.Chinese)
			fmt.Println("  pinyin: ", result.Pinyin)
		}
		for _, note := range result.Notes {
			fmt.Println("  note:   ", note)
		}
	}
}
