package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"UnfilteredChat/internal/attachment"
	"UnfilteredChat/internal/backend"
	"UnfilteredChat/internal/chatbot"
	"UnfilteredChat/internal/config"
	"UnfilteredChat/internal/generation"
	"UnfilteredChat/internal/session"
	"UnfilteredChat/internal/telemetry"
	"UnfilteredChat/internal/ui"

	"github.com/spf13/cobra"
)

// httpTimeout bounds a whole streamed reply, not just the first byte.
const httpTimeout = 5 * time.Minute

type options struct {
	configPath  string
	logDir      string
	baseURL     string
	debug       bool
	plain       bool
	noTelemetry bool
	images      []string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&options{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "unfiltered",
		Short:         "Blunt terminal chat with a hosted Gemini model",
		Long:          `Gemini Unfiltered: a terminal chat client with multiple sessions, image attachments and streamed replies.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "unfiltered.toml", "Path to TOML config file")
	flags.StringVar(&opts.logDir, "log-dir", "", "Directory for logs, traces and metrics")
	flags.StringVar(&opts.baseURL, "base-url", "", "Override the generation API endpoint")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&opts.noTelemetry, "no-telemetry", false, "Disable trace and metric export")
	root.Flags().BoolVar(&opts.plain, "plain", false, "Use the line-based REPL instead of the terminal UI")

	ask := &cobra.Command{
		Use:   "ask [prompt...]",
		Short: "Send a single prompt and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, opts, strings.Join(args, " "))
		},
	}
	ask.Flags().StringSliceVar(&opts.images, "image", nil, "Image file to attach (repeatable)")
	root.AddCommand(ask)

	return root
}

// loadConfig applies defaults, then the config file, then the environment,
// then any flags the user set explicitly.
func loadConfig(cmd *cobra.Command, opts *options, getenv func(string) string) (config.Config, error) {
	cfg := config.Default()
	if err := config.LoadFile(&cfg, opts.configPath); err != nil {
		return cfg, err
	}
	config.ApplyEnv(&cfg, getenv)

	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("log-dir") {
		cfg.LogDir = opts.logDir
	}
	if changed("base-url") {
		cfg.BaseURL = opts.baseURL
	}
	if changed("debug") {
		cfg.Debug = opts.debug
	}
	if changed("plain") {
		cfg.Plain = opts.plain
	}
	if changed("no-telemetry") {
		cfg.Telemetry = !opts.noTelemetry
	}
	return cfg, nil
}

type app struct {
	cfg     config.Config
	logger  *slog.Logger
	client  *generation.Client
	cleanup func()
}

func setup(cmd *cobra.Command, opts *options) (*app, error) {
	cfg, err := loadConfig(cmd, opts, os.Getenv)
	if err != nil {
		return nil, err
	}

	logger, logFile, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	shutdownTelemetry := func() {}
	if cfg.Telemetry {
		shutdownTelemetry, err = telemetry.InitTelemetry(cmd.Context(), cfg.LogDir)
		if err != nil {
			logFile.Close()
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	if cfg.APIKey == "" {
		logger.Warn("no API key in environment", "vars", []string{config.EnvAPIKey, config.EnvGeminiAPIKey})
	}
	logger.Info("starting", "model", config.Model, "plain", cfg.Plain, "telemetry", cfg.Telemetry)

	transport := backend.NewGenAI(cfg.APIKey, cfg.BaseURL, &http.Client{Timeout: httpTimeout})
	client := generation.NewClient(transport, generation.WithLogger(logger))

	return &app{
		cfg:    cfg,
		logger: logger,
		client: client,
		cleanup: func() {
			shutdownTelemetry()
			logFile.Close()
		},
	}, nil
}

func runChat(cmd *cobra.Command, opts *options) error {
	a, err := setup(cmd, opts)
	if err != nil {
		return err
	}
	defer a.cleanup()

	ctx := cmd.Context()
	bot := chatbot.NewChatBot(session.NewStore(), a.client, a.logger)

	if a.cfg.Plain {
		return bot.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	}
	if err := ui.Start(ctx, bot, a.logger); err != nil {
		a.logger.Error("terminal UI failed", "error", err)
		return err
	}
	return nil
}

func runAsk(cmd *cobra.Command, opts *options, prompt string) error {
	a, err := setup(cmd, opts)
	if err != nil {
		return err
	}
	defer a.cleanup()

	ctx := cmd.Context()
	var images []string
	if len(opts.images) > 0 {
		images, err = attachment.ReadFiles(ctx, opts.images)
		if err != nil {
			return fmt.Errorf("failed to read images: %w", err)
		}
	}

	reply := a.client.Generate(ctx, prompt, nil, images)
	fmt.Fprintln(cmd.OutOrStdout(), reply)
	return nil
}
