// Chatbot - terminal and browser client for the chatbot backend.
// Talks to /api/chatbot/* and keeps a per-installation session id on disk.
//
// Environment variables:
//   CHATBOT_CONFIG             - Config file path (default: ~/.chatbot/config.json)
//   CHATBOT_CONFIG_JSON        - Full config JSON (alternative to config file)
//   CHATBOT_BACKEND_BASE_URL   - Backend base URL (overrides config)
//   CHATBOT_STORAGE_DRIVER     - memory, file or sqlite
//   CHATBOT_LOG_LEVEL          - debug, info, warn or error
//
// A .env file in the working directory is loaded first.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/channels"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/chatbot"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/config"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/logger"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/session"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/storage"
)

const shutdownTimeout = 5 * time.Second

var (
	configPath string
	logLevel   string
)

func main() {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "chatbot",
		Short:        "Chat with the chatbot backend from a terminal or a browser",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "config file (.json, .toml or .yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")

	root.AddCommand(
		newChatCommand(),
		newConsoleCommand(),
		newSendCommand(),
		newServeCommand(),
		newUnansweredCommand(),
		newSessionCommand(),
		newConfigCommand(),
	)
	return root
}

func defaultConfigPath() string {
	if p := os.Getenv("CHATBOT_CONFIG"); p != "" {
		return p
	}
	return config.DefaultPath()
}

// dataDir holds the default log and history files, next to the default config.
func dataDir() string {
	return filepath.Dir(config.DefaultPath())
}

// app is what every command needs once config is loaded.
type app struct {
	cfg     *config.Config
	store   storage.Storage
	session *session.Store
	client  *chatbot.Client
}

type bootstrapOptions struct {
	// logToFile keeps log lines off a full-screen UI.
	logToFile bool
}

func bootstrap(opts bootstrapOptions) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logOpts := logger.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON, File: cfg.LogFile()}
	if opts.logToFile && logOpts.File == "" {
		logOpts.File = filepath.Join(dataDir(), "chatbot.log")
	}
	if err := logger.Init(logOpts); err != nil {
		return nil, err
	}

	st, err := storage.Open(cfg.Storage, cfg.StoragePath())
	if err != nil {
		// The session store degrades to a per-run id without storage.
		logger.WarnCF("cli", "Storage unavailable", map[string]interface{}{
			"driver": cfg.Storage.Driver,
			"error":  err.Error(),
		})
		st = nil
	}

	return &app{
		cfg:     cfg,
		store:   st,
		session: session.NewStore(st, cfg.Storage.SessionKey),
		client: chatbot.NewClient(cfg.Backend.BaseURL,
			chatbot.WithTimeout(cfg.BackendTimeout()),
			chatbot.WithUploadField(cfg.Backend.UploadField),
		),
	}, nil
}

func (rt *app) close() {
	if rt.store == nil {
		return
	}
	if err := rt.store.Close(); err != nil {
		logger.WarnCF("cli", "Closing storage failed", map[string]interface{}{"error": err.Error()})
	}
}

// runChannel starts ch and blocks until it finishes on its own or ctx is cancelled.
func runChannel(ctx context.Context, ch channels.Channel, done <-chan struct{}) error {
	if err := ch.Start(ctx); err != nil {
		return err
	}

	select {
	case <-done:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return ch.Stop(shutdownCtx)
}
