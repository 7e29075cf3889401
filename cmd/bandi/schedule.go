package main

import (
	"fmt"
	"path/filepath"

	"github.com/hyunwoolee/bandi/pkg/schedule"
	"github.com/hyunwoolee/bandi/pkg/store"
)

func openScheduleStore() (*store.Store, *schedule.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	st, err := store.Open(filepath.Join(cfg.DataDir(), "bandi.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return st, schedule.NewStore(st.DB()), nil
}

func scheduleListCmd() error {
	st, schedStore, err := openScheduleStore()
	if err != nil {
		return err
	}
	defer st.Close()

	jobs, err := schedStore.List()
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No scheduled jobs.")
		return nil
	}

	fmt.Println("\nScheduled Jobs:")
	fmt.Println("----------------")
	for _, job := range jobs {
		status := "enabled"
		if !job.Enabled {
			status = "disabled"
		}
		lastRun := job.LastRun
		if lastRun == "" {
			lastRun = "never"
		}

		fmt.Printf("  %s (%s)\n", job.Name, job.ID)
		fmt.Printf("    When: %s (%s)\n", job.Expr, job.Trigger)
		fmt.Printf("    Prompt: %s\n", job.Prompt)
		fmt.Printf("    Delivery: %s/%s\n", job.Channel, job.ChatID)
		fmt.Printf("    Status: %s, last run: %s\n", status, lastRun)
	}
	return nil
}

func scheduleAddCmd(name, expr, prompt, chatID string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if chatID == "" {
		chatID = cfg.Messenger.HomeChannel
	}

	st, schedStore, err := openScheduleStore()
	if err != nil {
		return err
	}
	defer st.Close()

	// Jobs created from the CLI deliver over the messenger channel.
	job, err := schedStore.Add(name, expr, prompt, "messenger", chatID)
	if err != nil {
		return err
	}
	fmt.Printf("Created job %q (%s): %s\n", job.Name, job.ID, job.Expr)
	return nil
}

func scheduleRemoveCmd(id string) error {
	st, schedStore, err := openScheduleStore()
	if err != nil {
		return err
	}
	defer st.Close()

	removed, err := schedStore.Delete(id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("no job with id %q", id)
	}
	fmt.Printf("Removed job %s\n", id)
	return nil
}

func scheduleEnableCmd(id string, enabled bool) error {
	st, schedStore, err := openScheduleStore()
	if err != nil {
		return err
	}
	defer st.Close()

	changed, err := schedStore.SetEnabled(id, enabled)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("no job with id %q", id)
	}
	if enabled {
		fmt.Printf("Enabled job %s\n", id)
	} else {
		fmt.Printf("Disabled job %s\n", id)
	}
	return nil
}
