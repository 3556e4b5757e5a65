package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/weforks/taskbot/pkg/automation"
	"github.com/weforks/taskbot/pkg/bus"
	"github.com/weforks/taskbot/pkg/channels"
	"github.com/weforks/taskbot/pkg/config"
	"github.com/weforks/taskbot/pkg/conversation"
	"github.com/weforks/taskbot/pkg/logger"
	"github.com/weforks/taskbot/pkg/todo"
)

var version = "dev"

func main() {
	command := "run"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "run":
		runCmd()
	case "version":
		fmt.Printf("taskbot %s (%s)\n", version, runtime.Version())
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`taskbot - Telegram front end for the to-do web application

Usage:
  taskbot [command]

Commands:
  run        Start the bot (default)
  version    Print version
  help       Show this help

Flags for run:
  --debug    Enable debug logging
  --config   Path to JSON config file (default taskbot.json)`)
}

// runner holds the started components so shutdown can tear them down in
// order: channels first, then every browser session, then the engine.
type runner struct {
	cfg            *config.Config
	msgBus         *bus.MessageBus
	store          *todo.Manager
	controller     *conversation.Controller
	channelManager *channels.Manager
	cancel         context.CancelFunc
}

func runCmd() {
	configPath := "taskbot.json"
	for i, arg := range os.Args {
		switch {
		case arg == "--debug" || arg == "-d":
			logger.SetLevel(logger.DEBUG)
		case arg == "--config" && i+1 < len(os.Args):
			configPath = os.Args[i+1]
		}
	}

	// Optional; credentials usually arrive through the environment.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if cfg.LogFile != "" {
		if err := logger.EnableFileLogging(cfg.LogFile); err != nil {
			logger.WarnCF("main", "File logging disabled", map[string]any{"error": err.Error()})
		}
	}

	r, err := start(cfg)
	if err != nil {
		logger.FatalCF("main", "Startup failed", map[string]any{"error": err.Error()})
	}

	fmt.Println("✓ taskbot started, press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	r.stop()
}

func start(cfg *config.Config) (*runner, error) {
	// Engine startup failure is fatal; nothing works without a browser.
	engine, err := automation.NewRodEngine(cfg.Browser.Headless)
	if err != nil {
		return nil, fmt.Errorf("start automation engine: %w", err)
	}
	logger.InfoC("main", "Browser engine launched")

	msgBus := bus.NewMessageBus()
	store := todo.NewManager(engine, cfg)
	controller := conversation.NewController(msgBus, store)

	channelManager, err := channels.NewManager(cfg, msgBus)
	if err != nil {
		store.CloseAll()
		return nil, fmt.Errorf("create channel manager: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	if err := channelManager.StartAll(ctx); err != nil {
		cancel()
		store.CloseAll()
		return nil, fmt.Errorf("start channels: %w", err)
	}

	go controller.Run(ctx)

	notifyAdmins(cfg, msgBus)

	return &runner{
		cfg:            cfg,
		msgBus:         msgBus,
		store:          store,
		controller:     controller,
		channelManager: channelManager,
		cancel:         cancel,
	}, nil
}

// notifyAdmins tells the configured operator chats that the process came
// back up. Unreachable admins are logged and skipped.
func notifyAdmins(cfg *config.Config, msgBus *bus.MessageBus) {
	for _, adminID := range cfg.Telegram.AdminIDs {
		if adminID == "" {
			continue
		}
		logger.InfoCF("main", "Sending restart notification", map[string]any{"admin_id": adminID})
		msgBus.PublishOutbound(bus.OutboundMessage{
			Channel: "telegram",
			ChatID:  adminID,
			Content: conversation.RestartMessage,
			Buttons: conversation.AuthKeyboard(),
		})
	}
}

func (r *runner) stop() {
	fmt.Println("\nShutting down...")
	logger.InfoC("main", "Shutting down...")

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.channelManager.StopAll(stopCtx); err != nil {
		logger.ErrorCF("main", "Error stopping channels", map[string]any{"error": err.Error()})
	}

	r.cancel()

	// Best effort per session; one stuck session must not block the rest.
	r.store.CloseAll()
	r.msgBus.Close()

	logger.InfoC("main", "Shutdown complete")
	fmt.Println("✓ taskbot stopped")
}
