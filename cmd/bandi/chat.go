package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/hyunwoolee/bandi/pkg/assistant"
	"github.com/hyunwoolee/bandi/pkg/bus"
	"github.com/hyunwoolee/bandi/pkg/dailylog"
	"github.com/hyunwoolee/bandi/pkg/facts"
	"github.com/hyunwoolee/bandi/pkg/history"
	"github.com/hyunwoolee/bandi/pkg/llm"
	"github.com/hyunwoolee/bandi/pkg/logger"
	"github.com/hyunwoolee/bandi/pkg/notify"
	"github.com/hyunwoolee/bandi/pkg/schedule"
	"github.com/hyunwoolee/bandi/pkg/skills"
	"github.com/hyunwoolee/bandi/pkg/status"
	"github.com/hyunwoolee/bandi/pkg/store"
)

const chatChannelID = "cli"

// consoleTransport prints replies to stdout so the pipeline can run
// against a terminal instead of a messenger.
type consoleTransport struct{}

func (consoleTransport) SendMessage(ctx context.Context, channel, chatID, content string) error {
	fmt.Printf("\n%s %s\n\n", appName, content)
	return nil
}

func (consoleTransport) SetTyping(ctx context.Context, channel, chatID string)   {}
func (consoleTransport) ClearTyping(ctx context.Context, channel, chatID string) {}

func chat(message string, debug bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dataDir := cfg.DataDir()
	st, err := store.Open(filepath.Join(dataDir, "bandi.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	factStore := facts.NewStore(st.DB())
	histStore := history.NewStore(st.DB(), cfg.History.MaxMessages)
	schedStore := schedule.NewStore(st.DB())
	daily := dailylog.New(filepath.Join(dataDir, "memory"))
	skillMgr := skills.NewManager(filepath.Join(dataDir, "skills"))
	notifier := notify.New(cfg.Notifications.Enabled)
	statusWriter := status.NewWriter(dataDir, factStore, schedStore, histStore, skillMgr)

	assembler := assistant.NewAssembler(cfg.WorkspacePath(), factStore, daily, schedStore, skillMgr)
	executor := assistant.NewExecutor(factStore, schedStore, skillMgr, daily, notifier, statusWriter)
	model := llm.NewClient(cfg.LLM)
	pipeline := assistant.NewPipeline(assembler, histStore, executor, model, consoleTransport{})

	ctx := context.Background()

	if message != "" {
		pipeline.Process(ctx, chatMessage(message))
		return nil
	}

	fmt.Printf("%s Interactive mode (Ctrl+C to exit)\n\n", appName)
	return interactiveChat(ctx, pipeline)
}

func chatMessage(content string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:    chatChannelID,
		SenderID:   "local",
		SenderName: "local",
		ChatID:     chatChannelID,
		Content:    content,
	}
}

func interactiveChat(ctx context.Context, pipeline *assistant.Pipeline) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s You: ", appName),
		HistoryFile:     filepath.Join(os.TempDir(), ".bandi_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}

		pipeline.Process(ctx, chatMessage(input))
	}
}
