package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hyunwoolee/bandi/pkg/assistant"
	"github.com/hyunwoolee/bandi/pkg/bus"
	"github.com/hyunwoolee/bandi/pkg/channels"
	"github.com/hyunwoolee/bandi/pkg/config"
	"github.com/hyunwoolee/bandi/pkg/dailylog"
	"github.com/hyunwoolee/bandi/pkg/facts"
	"github.com/hyunwoolee/bandi/pkg/gateway"
	"github.com/hyunwoolee/bandi/pkg/heartbeat"
	"github.com/hyunwoolee/bandi/pkg/history"
	"github.com/hyunwoolee/bandi/pkg/llm"
	"github.com/hyunwoolee/bandi/pkg/logger"
	"github.com/hyunwoolee/bandi/pkg/messenger"
	"github.com/hyunwoolee/bandi/pkg/notify"
	"github.com/hyunwoolee/bandi/pkg/schedule"
	"github.com/hyunwoolee/bandi/pkg/skills"
	"github.com/hyunwoolee/bandi/pkg/status"
	"github.com/hyunwoolee/bandi/pkg/store"
)

func serve(debug bool) error {
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
	cooldown := llm.NewCooldown(llm.DefaultCooldownMin)

	msgBus := bus.NewMessageBus()
	manager := channels.NewManager(msgBus)

	msgrClient := messenger.NewClient(cfg.Messenger.URL, cfg.Messenger.BotName)
	msgrChannel := channels.NewMessengerChannel(msgBus, msgrClient, dataDir, webhookURL(cfg), nil)
	manager.Register(msgrChannel)

	if cfg.Channels.Discord.Token != "" {
		manager.Register(channels.NewDiscordChannel(msgBus, cfg.Channels.Discord.Token, cfg.Channels.Discord.AllowFrom))
	}

	pipeline := assistant.NewPipeline(assembler, histStore, executor, model, manager)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coalescer := assistant.NewCoalescer(assistant.DefaultDebounceWindow, func(msg bus.InboundMessage) {
		go pipeline.Process(ctx, msg)
	})

	go func() {
		for {
			msg, ok := msgBus.ConsumeInbound(ctx)
			if !ok {
				return
			}
			coalescer.Add(msg)
		}
	}()

	hours, err := heartbeat.ParseActiveHours(cfg.Heartbeat.ActiveHours)
	if err != nil {
		return fmt.Errorf("heartbeat config: %w", err)
	}
	hb := heartbeat.NewController(heartbeat.Config{
		Enabled:     cfg.Heartbeat.Enabled,
		Hours:       hours,
		Interval:    time.Duration(cfg.Heartbeat.Interval) * time.Minute,
		HomeChannel: cfg.Messenger.HomeChannel,
	}, assembler, histStore, schedStore, factStore, executor, model, manager, cooldown)

	gw := gateway.NewServer(gateway.Config{
		Host:           cfg.Gateway.Host,
		Port:           cfg.Gateway.Port,
		BotName:        cfg.Messenger.BotName,
		HomeChatID:     cfg.Messenger.HomeChannel,
		IncomingSecret: cfg.Gateway.IncomingSecret,
	}, msgrChannel)

	go func() {
		if err := gw.Start(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("gateway", "server error", map[string]interface{}{"error": err.Error()})
		}
	}()

	if err := manager.StartAll(ctx); err != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		_ = gw.Shutdown(shutdownCtx)
		done()
		return fmt.Errorf("start channels: %w", err)
	}

	go hb.Run(ctx)
	statusWriter.Refresh()
	gw.SetReady()

	fmt.Printf("✓ Gateway listening on %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	if cfg.Heartbeat.Enabled {
		fmt.Printf("✓ Heartbeat every %dm (%s)\n", cfg.Heartbeat.Interval, cfg.Heartbeat.ActiveHours)
	}
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.WarnCF("gateway", "shutdown error", map[string]interface{}{"error": err.Error()})
	}
	coalescer.Stop()
	manager.StopAll(shutdownCtx)
	msgBus.Close()
	fmt.Println("✓ Stopped")
	return nil
}

// webhookURL is where the messenger platform delivers events. A
// wildcard bind address is not reachable from the platform, so it is
// registered as localhost.
func webhookURL(cfg *config.Config) string {
	host := cfg.Gateway.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d/webhook", host, cfg.Gateway.Port)
}
