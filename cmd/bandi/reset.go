package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyunwoolee/bandi/pkg/facts"
	"github.com/hyunwoolee/bandi/pkg/history"
	"github.com/hyunwoolee/bandi/pkg/schedule"
	"github.com/hyunwoolee/bandi/pkg/store"
)

type resetOptions struct {
	all       bool
	memory    bool
	history   bool
	schedules bool
	channel   string
	yes       bool
}

// resetCmd deletes persistent data. Run while the assistant is stopped.
func resetCmd(opts resetOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir(), "bandi.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database not found: %s (the assistant has not been run yet)", dbPath)
	}

	var actions []string
	if opts.all {
		actions = append(actions, "ALL data (memory + history + schedules)")
	} else {
		if opts.memory {
			actions = append(actions, "memory facts")
		}
		if opts.history {
			if opts.channel != "" {
				actions = append(actions, fmt.Sprintf("conversation history (channel %s)", opts.channel))
			} else {
				actions = append(actions, "all conversation history")
			}
		}
		if opts.schedules {
			actions = append(actions, "scheduled jobs")
		}
	}

	if !opts.yes {
		fmt.Printf("This will DELETE: %s\n", strings.Join(actions, ", "))
		fmt.Print("Are you sure? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil || strings.ToLower(strings.TrimSpace(response)) != "y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if opts.all || opts.memory {
		if err := facts.NewStore(st.DB()).Clear(); err != nil {
			return err
		}
		fmt.Println("All memory facts deleted.")
	}

	if opts.all || opts.history {
		histStore := history.NewStore(st.DB(), cfg.History.MaxMessages)
		if !opts.all && opts.channel != "" {
			if err := histStore.Clear(opts.channel); err != nil {
				return err
			}
			fmt.Printf("Conversation history for channel %s deleted.\n", opts.channel)
		} else {
			if err := histStore.ClearAll(); err != nil {
				return err
			}
			fmt.Println("All conversation history deleted.")
		}
	}

	if opts.all || opts.schedules {
		if err := schedule.NewStore(st.DB()).Clear(); err != nil {
			return err
		}
		fmt.Println("All scheduled jobs deleted.")
	}

	if opts.all {
		fmt.Println("\nAll data has been reset.")
	}
	return nil
}
