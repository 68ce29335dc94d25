// Command yipsd is the yips daemon: a local Unix-domain-socket process that
// holds conversation sessions, drives the ReAct turn engine against an
// OpenAI-compatible LLM backend, and dispatches built-in and skill tools on
// its behalf.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sheepbun/yips/internal/daemon"
	"github.com/sheepbun/yips/internal/llmclient"
	"github.com/sheepbun/yips/internal/session"
	"github.com/sheepbun/yips/internal/skills"
	"github.com/sheepbun/yips/internal/tools"
	"github.com/sheepbun/yips/internal/turnengine"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "yipsd",
		Short:        "yips daemon - local AI coding-assistant turn engine",
		Version:      fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage: true,
	}
	root.AddCommand(buildServeCmd())
	return root
}

func buildServeCmd() *cobra.Command {
	var (
		socketPath            string
		skillsRoot            string
		llmBaseURL            string
		llmModel              string
		maxRounds             int
		failurePivotThreshold int
		debug                 bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the yips daemon and listen for IPC connections",
		Long: `Start the yips daemon.

The daemon binds a Unix domain socket, accepts framed JSON IPC connections,
and runs the ReAct turn engine per session against an OpenAI-compatible
chat-completions backend. Graceful shutdown is handled on SIGINT/SIGTERM:
every in-flight turn is aborted and the socket file is removed.`,
		Example: `  # Start with defaults
  yipsd serve

  # Point at a local llama.cpp / vLLM server on a non-default port
  yipsd serve --llm-base-url http://127.0.0.1:8081

  # Use an explicit socket path instead of $XDG_RUNTIME_DIR
  yipsd serve --socket /tmp/yips/daemon.sock`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
			}
			return runServe(cmd.Context(), serveOptions{
				socketPath:            resolveSocketPath(socketPath),
				skillsRoot:            skillsRoot,
				llmBaseURL:            llmBaseURL,
				llmModel:              llmModel,
				maxRounds:             maxRounds,
				failurePivotThreshold: failurePivotThreshold,
			})
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "Unix domain socket path (default $XDG_RUNTIME_DIR/yips/daemon.sock, falling back to /tmp/yips/daemon.sock)")
	cmd.Flags().StringVar(&skillsRoot, "skills-dir", defaultSkillsRoot(), "Directory containing skill subdirectories (manifest.json + runnable)")
	cmd.Flags().StringVar(&llmBaseURL, "llm-base-url", "http://127.0.0.1:8080", "Base URL of the OpenAI-compatible chat-completions backend")
	cmd.Flags().StringVar(&llmModel, "llm-model", "local-model", "Model name sent in chat-completion requests")
	cmd.Flags().IntVar(&maxRounds, "max-rounds", turnengine.DefaultConfig().MaxRounds, "Maximum ReAct rounds per turn before MaxRoundsExceeded")
	cmd.Flags().IntVar(&failurePivotThreshold, "failure-pivot-threshold", turnengine.DefaultConfig().FailurePivotThreshold, "Consecutive failed-tool rounds before a pivot hint is injected")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

type serveOptions struct {
	socketPath            string
	skillsRoot            string
	llmBaseURL            string
	llmModel              string
	maxRounds             int
	failurePivotThreshold int
}

func runServe(ctx context.Context, opts serveOptions) error {
	logger := slog.Default()

	logger.Info("starting yips daemon",
		"version", version,
		"commit", commit,
		"socket", opts.socketPath,
		"llm_base_url", opts.llmBaseURL,
	)

	if err := os.MkdirAll(filepath.Dir(opts.socketPath), 0o755); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry); err != nil {
		return fmt.Errorf("register builtin tools: %w", err)
	}

	skillMgr := skills.NewManager(opts.skillsRoot, registry, logger)
	if err := skillMgr.Discover(); err != nil {
		logger.Warn("initial skill discovery failed", "error", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := skillMgr.Watch(ctx); err != nil {
		logger.Warn("skill directory watch failed to start", "error", err)
	}
	defer skillMgr.Close()

	llm := llmclient.New(opts.llmBaseURL, opts.llmModel, nil)

	srv := daemon.New(daemon.Config{
		SocketPath: opts.socketPath,
		Sessions:   session.NewManager(),
		Registry:   registry,
		LLM:        llm,
		TurnConfig: turnengine.Config{
			MaxRounds:             opts.maxRounds,
			FailurePivotThreshold: opts.failurePivotThreshold,
		},
		Logger: logger,
	})

	logger.Info("yips daemon ready")
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("daemon exited: %w", err)
	}

	logger.Info("yips daemon stopped cleanly")
	return nil
}

// resolveSocketPath honors an explicit --socket flag, otherwise falls back
// to $XDG_RUNTIME_DIR/yips/daemon.sock and finally /tmp/yips/daemon.sock,
// per spec.md §6.
func resolveSocketPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "yips", "daemon.sock")
	}
	return "/tmp/yips/daemon.sock"
}

func defaultSkillsRoot() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".yips", "skills")
	}
	return filepath.Join(os.TempDir(), "yips", "skills")
}
