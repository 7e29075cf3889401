package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func executeCLI() error {
	return buildRootCommand().Execute()
}

func buildRootCommand() *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "bandi",
		Short: "Personal AI assistant with messenger gateway, memory, and scheduled jobs",
		Long: strings.TrimSpace(`bandi is a personal conversational assistant.

It bridges your messenger and a model completion endpoint, remembers
facts, keeps a daily log, runs scheduled jobs, and checks in on its own
during active hours.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newServeCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newScheduleCommand())
	root.AddCommand(newResetCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newOnboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "onboard",
		Short:   "Initialize ~/.bandi config and workspace templates",
		Long:    "Create default configuration, the workspace layout, and a starter SOUL.md persona.",
		Example: "  bandi onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return onboard()
		},
	}
}

func newServeCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the assistant: gateway, channels, heartbeat",
		Long:    "Start the webhook gateway, channel adapters, debounce pipeline, and heartbeat loop.",
		Example: "  bandi serve --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newChatCommand() *cobra.Command {
	var (
		message string
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant locally (no messenger)",
		Long:  "Run an interactive local session or send a one-shot message against the local stores.",
		Example: strings.Join([]string{
			"  bandi chat",
			"  bandi chat --message \"what's on my schedule today?\"",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return chat(message, debug)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "One-shot message to send")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration and runtime readiness",
		Example: "  bandi status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return statusCmd()
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  bandi version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}

func newScheduleCommand() *cobra.Command {
	scheduleRoot := &cobra.Command{
		Use:   "schedule",
		Short: "Manage scheduled jobs",
		Long:  "List, create, and manage the assistant's scheduled jobs.",
	}

	scheduleRoot.AddCommand(&cobra.Command{
		Use:     "list",
		Short:   "List scheduled jobs",
		Example: "  bandi schedule list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return scheduleListCmd()
		},
	})

	var (
		name    string
		expr    string
		prompt  string
		channel string
	)

	add := &cobra.Command{
		Use:   "add",
		Short: "Add a scheduled job",
		Long:  "Add a job with a daily time (HH:MM), a 5-field cron expression, or an absolute time.",
		Example: strings.Join([]string{
			"  bandi schedule add --name wakeup --when 07:30 --prompt \"good morning briefing\"",
			"  bandi schedule add --name digest --when '0 18 * * 5' --prompt \"weekly summary\"",
			"  bandi schedule add --name dentist --when '2026-09-15 14:30' --prompt \"remind me about the dentist\"",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("--name is required")
			}
			if strings.TrimSpace(expr) == "" {
				return fmt.Errorf("--when is required")
			}
			if strings.TrimSpace(prompt) == "" {
				return fmt.Errorf("--prompt is required")
			}
			return scheduleAddCmd(name, expr, prompt, channel)
		},
	}
	add.Flags().StringVarP(&name, "name", "n", "", "Job name")
	add.Flags().StringVarP(&expr, "when", "w", "", "HH:MM, cron expression, or absolute time")
	add.Flags().StringVarP(&prompt, "prompt", "p", "", "Prompt the model runs when the job fires")
	add.Flags().StringVarP(&channel, "channel", "c", "", "Messenger chat the reply goes to (default: home)")
	scheduleRoot.AddCommand(add)

	scheduleRoot.AddCommand(&cobra.Command{
		Use:     "remove <job_id>",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove a scheduled job",
		Args:    cobra.ExactArgs(1),
		Example: "  bandi schedule remove 4f1c2d",
		RunE: func(cmd *cobra.Command, args []string) error {
			return scheduleRemoveCmd(args[0])
		},
	})

	scheduleRoot.AddCommand(&cobra.Command{
		Use:     "enable <job_id>",
		Short:   "Enable a disabled job",
		Args:    cobra.ExactArgs(1),
		Example: "  bandi schedule enable 4f1c2d",
		RunE: func(cmd *cobra.Command, args []string) error {
			return scheduleEnableCmd(args[0], true)
		},
	})

	scheduleRoot.AddCommand(&cobra.Command{
		Use:     "disable <job_id>",
		Short:   "Disable a job",
		Args:    cobra.ExactArgs(1),
		Example: "  bandi schedule disable 4f1c2d",
		RunE: func(cmd *cobra.Command, args []string) error {
			return scheduleEnableCmd(args[0], false)
		},
	})

	return scheduleRoot
}

func newResetCommand() *cobra.Command {
	var (
		all       bool
		memory    bool
		histFlag  bool
		schedules bool
		channel   string
		yes       bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete persistent data (memory, history, schedules)",
		Long:  "Reset stored data. Run while the assistant is stopped to avoid database conflicts.",
		Example: strings.Join([]string{
			"  bandi reset --all",
			"  bandi reset --memory",
			"  bandi reset --history --channel 1",
			"  bandi reset --schedules -y",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && !memory && !histFlag && !schedules {
				return fmt.Errorf("nothing selected: use --all, --memory, --history, or --schedules")
			}
			return resetCmd(resetOptions{
				all:       all,
				memory:    memory,
				history:   histFlag,
				schedules: schedules,
				channel:   channel,
				yes:       yes,
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Reset everything")
	cmd.Flags().BoolVar(&memory, "memory", false, "Reset memory facts")
	cmd.Flags().BoolVar(&histFlag, "history", false, "Reset conversation history")
	cmd.Flags().BoolVar(&schedules, "schedules", false, "Reset scheduled jobs")
	cmd.Flags().StringVar(&channel, "channel", "", "Limit --history to one channel")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")
	return cmd
}
