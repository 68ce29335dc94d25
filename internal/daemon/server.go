// Package daemon implements the UDS listener, the per-connection protocol
// handler, and the active-turns table with supersede/cancel semantics.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sheepbun/yips/internal/llmclient"
	"github.com/sheepbun/yips/internal/session"
	"github.com/sheepbun/yips/internal/tools"
	"github.com/sheepbun/yips/internal/turnengine"
)

// healthCheckTimeout bounds the Status operation's backend liveness probe.
const healthCheckTimeout = 1500 * time.Millisecond

// Server is the daemon's UDS listener plus its shared subsystems.
type Server struct {
	socketPath string
	sessions   *session.Manager
	registry   *tools.Registry
	llm        *llmclient.Client
	turnConfig turnengine.Config
	logger     *slog.Logger

	turns *activeTurns
}

// Config bundles a Server's constructor arguments.
type Config struct {
	SocketPath string
	Sessions   *session.Manager
	Registry   *tools.Registry
	LLM        *llmclient.Client
	TurnConfig turnengine.Config
	Logger     *slog.Logger
}

// New constructs a Server. It does not bind the socket yet; call Run.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: cfg.SocketPath,
		sessions:   cfg.Sessions,
		registry:   cfg.Registry,
		llm:        cfg.LLM,
		turnConfig: cfg.TurnConfig,
		logger:     logger.With("component", "daemon"),
		turns:      newActiveTurns(),
	}
}

// Run removes any stale socket file, binds the listener, and serves
// connections until ctx is cancelled. On return the socket file is removed
// on a best-effort basis and every in-flight turn has been aborted.
func (s *Server) Run(ctx context.Context) error {
	if _, err := os.Stat(s.socketPath); err == nil {
		if err := os.Remove(s.socketPath); err != nil {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("bind unix socket: %w", err)
	}

	s.logger.Info("listening for IPC connections", "socket", s.socketPath)

	var wg sync.WaitGroup
	acceptDone := make(chan struct{})

	go func() {
		defer close(acceptDone)
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					s.logger.Error("accept error", "error", err)
					return
				}
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.handleConnection(ctx, conn)
			}()
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case <-acceptDone:
	}

	_ = listener.Close()
	<-acceptDone
	wg.Wait()

	s.turns.abortAll()

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove socket during shutdown", "error", err)
	}

	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	c := newConnection(conn, s.sessions, s.registry, s.llm, s.turns, s.turnConfig, s.logger)
	// Closing the stream once ctx is cancelled ends the read loop, so Run's
	// wait for open connections does not outlast shutdown.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	c.serve(ctx)
}

// ActiveSessionIDs exposes the current active-turn session ids, for tests.
func (s *Server) ActiveSessionIDs() []string {
	return s.turns.ids()
}
