package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hyunwoolee/bandi/pkg/config"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "bandi"

const defaultSoul = `# SOUL

You are Bandi, a personal AI assistant. You live on your owner's machine
and talk to them over their messenger. Be warm, concise, and useful.

Your data lives under {BANDI_DATA_DIR}. Remember important things with
memory directives, keep a daily log of what happens, and schedule
follow-ups when something needs to happen later.
`

func main() {
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func printVersion() {
	fmt.Printf("%s %s\n", appName, formatVersion())
	if buildTime != "" {
		fmt.Printf("  Build: %s\n", buildTime)
	}
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	fmt.Printf("  Go: %s\n", goVer)
}

func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".bandi", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}

func onboard() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
		fmt.Print("Overwrite? (y/n): ")
		reader := bufio.NewReader(os.Stdin)
		response, readErr := reader.ReadString('\n')
		if readErr != nil {
			fmt.Println("Aborted.")
			return nil
		}
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(configPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	workspace := cfg.WorkspacePath()
	if err := createWorkspaceTemplates(workspace); err != nil {
		return fmt.Errorf("create workspace templates: %w", err)
	}

	fmt.Printf("%s is ready!\n", appName)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Point llm.api_base in", configPath, "at your completion endpoint")
	fmt.Println("  2. Set messenger.url and messenger.home_channel for your messenger")
	fmt.Println("  3. (Optional) Add a Discord token to channels.discord.token")
	fmt.Println("  4. Chat locally: bandi chat")
	fmt.Println("  5. Run the assistant: bandi serve")
	return nil
}

func createWorkspaceTemplates(workspace string) error {
	dirs := []string{
		workspace,
		filepath.Join(workspace, "data"),
		filepath.Join(workspace, "data", "memory"),
		filepath.Join(workspace, "data", "skills"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	soulPath := filepath.Join(workspace, "SOUL.md")
	if _, err := os.Stat(soulPath); os.IsNotExist(err) {
		if err := os.WriteFile(soulPath, []byte(defaultSoul), 0644); err != nil {
			return err
		}
	}
	return nil
}

func statusCmd() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	configPath := getConfigPath()

	fmt.Printf("%s Status\n", appName)
	fmt.Printf("Version: %s\n\n", formatVersion())

	mark := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "✗"
	}

	_, cfgErr := os.Stat(configPath)
	fmt.Println("Config:", configPath, mark(cfgErr == nil))

	workspace := cfg.WorkspacePath()
	_, wsErr := os.Stat(workspace)
	fmt.Println("Workspace:", workspace, mark(wsErr == nil))

	dbPath := filepath.Join(cfg.DataDir(), "bandi.db")
	if _, err := os.Stat(dbPath); err == nil {
		fmt.Println("Database:", dbPath, "✓")
	} else {
		fmt.Println("Database:", dbPath, "not initialized")
	}

	soulPath := filepath.Join(workspace, "SOUL.md")
	_, soulErr := os.Stat(soulPath)
	fmt.Println("Persona:", soulPath, mark(soulErr == nil))

	fmt.Println()
	fmt.Println("Model:", cfg.LLM.Model)
	fmt.Println("LLM endpoint:", cfg.LLM.APIBase)
	fmt.Println("Messenger:", cfg.Messenger.URL)
	fmt.Println("Home channel:", cfg.Messenger.HomeChannel)

	discordReady := strings.TrimSpace(cfg.Channels.Discord.Token) != ""
	if discordReady {
		fmt.Println("Discord: configured")
	} else {
		fmt.Println("Discord: not set")
	}

	heartbeat := "disabled"
	if cfg.Heartbeat.Enabled {
		heartbeat = fmt.Sprintf("every %dm (%s)", cfg.Heartbeat.Interval, cfg.Heartbeat.ActiveHours)
	}
	fmt.Println("Heartbeat:", heartbeat)
	return nil
}
