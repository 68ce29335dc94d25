package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/sheepbun/yips/internal/apperrors"
	"github.com/sheepbun/yips/internal/llmclient"
	"github.com/sheepbun/yips/internal/session"
	"github.com/sheepbun/yips/internal/tools"
	"github.com/sheepbun/yips/internal/turnengine"
	"github.com/sheepbun/yips/internal/wire"
)

// outboundCapacity bounds the per-connection write channel, per spec.md §4.7.
const outboundCapacity = 64

// connection owns one accepted UDS stream: a single writer task draining a
// bounded channel, and the read loop dispatching client messages.
type connection struct {
	conn     net.Conn
	sessions *session.Manager
	registry *tools.Registry
	llm      *llmclient.Client
	turns    *activeTurns
	cfg      turnengine.Config
	logger   *slog.Logger

	out chan wire.DaemonMessage

	// turnsWG tracks in-flight turn goroutines (producers onto out);
	// writerWG tracks the single writer task (the consumer). out is closed
	// only once every producer has finished, mirroring the drop-the-last-
	// sender-closes-the-channel semantics the reference implementation
	// relies on for its mpsc channel.
	turnsWG  sync.WaitGroup
	writerWG sync.WaitGroup
}

func newConnection(conn net.Conn, sessions *session.Manager, registry *tools.Registry, llm *llmclient.Client, turns *activeTurns, cfg turnengine.Config, logger *slog.Logger) *connection {
	return &connection{
		conn:     conn,
		sessions: sessions,
		registry: registry,
		llm:      llm,
		turns:    turns,
		cfg:      cfg,
		logger:   logger,
		out:      make(chan wire.DaemonMessage, outboundCapacity),
	}
}

// serve runs the writer task and the read loop, returning once the
// connection is done (EOF, protocol error, or Shutdown).
func (c *connection) serve(ctx context.Context) {
	c.writerWG.Add(1)
	go c.writerLoop()

	c.readLoop(ctx)

	c.turnsWG.Wait()
	close(c.out)
	c.writerWG.Wait()
	_ = c.conn.Close()
}

func (c *connection) writerLoop() {
	defer c.writerWG.Done()
	for msg := range c.out {
		if err := wire.WriteMessage(c.conn, msg); err != nil {
			c.logger.Warn("write IPC message failed", "error", err)
			return
		}
	}
}

func (c *connection) readLoop(ctx context.Context) {
	for {
		var msg wire.ClientMessage
		if err := wire.ReadMessage(c.conn, &msg); err != nil {
			if err != io.EOF {
				c.logger.Debug("read IPC message ended", "error", err)
			}
			return
		}

		switch msg.Type {
		case wire.ClientChat:
			c.handleChat(ctx, msg)
		case wire.ClientStatus:
			c.handleStatus(ctx)
		case wire.ClientListSessions:
			c.handleListSessions()
		case wire.ClientCancel:
			c.handleCancel(msg.SessionID)
		case wire.ClientShutdown:
			c.logger.Info("shutdown requested by client")
			return
		default:
			c.logger.Warn("unknown client message type", "type", msg.Type)
		}
	}
}

func (c *connection) handleChat(ctx context.Context, msg wire.ClientMessage) {
	handle, sessionID := c.sessions.GetOrCreate(msg.SessionID, msg.WorkingDirectory)
	messages := handle.AppendUserMessage(msg.Message)

	turnCtx, cancel := context.WithCancel(ctx)
	token := uuid.NewString()

	deps := &connDependencies{
		ctx:              turnCtx,
		sessionID:        sessionID,
		workingDirectory: handle.WorkingDirectory(),
		llm:              c.llm,
		registry:         c.registry,
		out:              c.out,
	}
	engine := turnengine.New(c.cfg, deps)

	if superseded := c.turns.register(sessionID, token, cancel); superseded {
		c.send(wire.NewCancelResult(sessionID, wire.CancelledActiveTurn, wire.OriginSupersededByNewChat))
	}

	c.turnsWG.Add(1)
	go func() {
		defer c.turnsWG.Done()
		defer cancel()

		result, err := engine.Run(turnCtx, messages)
		switch {
		case errors.Is(err, apperrors.ErrCancelled):
			// The CancelResult (either from an explicit Cancel or from the
			// supersede above) already carries the outcome; spec.md §7
			// mandates no wire Error for this case, and the session log
			// must not be overwritten with a cancelled turn's partial
			// state (spec.md §5).
		case err != nil:
			c.send(wire.NewError(sessionID, err.Error()))
		default:
			handle.ReplaceMessages(result.Messages)
			c.send(wire.NewTurnComplete(sessionID, result.RoundsUsed))
		}
		c.turns.finish(sessionID, token)
	}()
}

func (c *connection) handleStatus(ctx context.Context) {
	healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	connected := c.llm.HealthCheck(healthCtx) == nil
	c.send(wire.NewStatusResponse(c.sessions.ListIDs(), connected))
}

func (c *connection) handleListSessions() {
	infos := c.sessions.ListInfo()
	summaries := make([]wire.SessionSummary, 0, len(infos))
	for _, info := range infos {
		summaries = append(summaries, wire.SessionSummary{
			ID:           info.ID,
			CreatedAt:    info.CreatedAt.Format(rfc3339),
			MessageCount: info.MessageCount,
		})
	}
	c.send(wire.NewSessionList(summaries))
}

func (c *connection) handleCancel(sessionID string) {
	outcome := wire.NoActiveTurn
	if c.turns.cancel(sessionID) {
		outcome = wire.CancelledActiveTurn
	}
	c.send(wire.NewCancelResult(sessionID, outcome, wire.OriginUserRequest))
}

// send enqueues msg on the outbound channel. Safe to call from the read
// loop or a turn goroutine: out is only closed once every turn goroutine
// tracked by turnsWG has returned.
func (c *connection) send(msg wire.DaemonMessage) {
	c.out <- msg
}

const rfc3339 = "2006-01-02T15:04:05Z07:00"
