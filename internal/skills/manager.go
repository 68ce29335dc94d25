package skills

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sheepbun/yips/internal/model"
	"github.com/sheepbun/yips/internal/tools"
)

// Manager discovers skill directories under a root path and keeps a tool
// registry's skill-backed entries in sync via an fsnotify watch on the root
// (spec.md §4.4 is silent on hot-reload; a long-lived daemon needing a
// restart to notice a new skill is the ergonomic gap this closes). The
// watch is on the root directory only, not recursive: creating, removing or
// renaming a skill directory triggers a rescan, while editing or deleting
// the manifest.json inside an existing skill directory does not.
type Manager struct {
	root     string
	registry *tools.Registry
	logger   *slog.Logger

	mu      sync.RWMutex
	entries map[string]*Entry

	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
	watchWg     sync.WaitGroup
}

// NewManager creates a Manager that discovers skills under root and
// registers/unregisters them on registry.
func NewManager(root string, registry *tools.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		root:     root,
		registry: registry,
		logger:   logger.With("component", "skills"),
		entries:  make(map[string]*Entry),
	}
}

// Discover scans the root directory and replaces the registered skill set
// with whatever is found there.
func (m *Manager) Discover() error {
	found, err := discoverAll(m.root)
	if err != nil {
		return err
	}

	m.mu.Lock()
	previous := m.entries
	current := make(map[string]*Entry, len(found))
	for _, e := range found {
		current[e.Manifest.Name] = e
	}
	m.entries = current
	m.mu.Unlock()

	for name := range previous {
		if _, stillPresent := current[name]; !stillPresent {
			m.registry.Unregister(name)
		}
	}
	for name, e := range current {
		if err := m.registry.Register(buildDefinition(e), buildHandler(e)); err != nil {
			m.logger.Warn("register skill failed", "skill", name, "error", err)
			continue
		}
	}

	m.logger.Info("discovered skills", "count", len(current))
	return nil
}

func buildDefinition(e *Entry) model.ToolDefinition {
	return model.ToolDefinition{
		Name:        e.Manifest.Name,
		Description: e.Manifest.Description,
		Parameters:  e.Manifest.Arguments,
	}
}

func buildHandler(e *Entry) tools.Handler {
	return func(ctx context.Context, arguments json.RawMessage) (model.ToolOutput, error) {
		inv := Invocation{}
		if toolInv, ok := tools.InvocationFromContext(ctx); ok {
			inv = Invocation{SessionID: toolInv.SessionID, WorkingDirectory: toolInv.WorkingDirectory}
		}
		return Run(ctx, e, arguments, inv)
	}
}

// Watch starts an fsnotify watch on the root directory, re-running Discover
// (debounced) whenever an immediate entry of it is created, written,
// removed, or renamed; files inside skill subdirectories are not watched.
// Watch is a no-op if root does not exist yet.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(m.root); err != nil {
		_ = watcher.Close()
		m.logger.Warn("skill watch disabled: root not watchable", "root", m.root, "error", err)
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	m.watcher = watcher
	m.watchCancel = cancel

	m.watchWg.Add(1)
	go m.watchLoop(watchCtx, watcher)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer m.watchWg.Done()

	const debounce = 250 * time.Millisecond
	var timer *time.Timer
	scheduleRefresh := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			if err := m.Discover(); err != nil {
				m.logger.Warn("skill discovery failed during watch refresh", "error", err)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				scheduleRefresh()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("skill watch error", "error", err)
		}
	}
}

// Close stops the watch, if running.
func (m *Manager) Close() error {
	if m.watchCancel != nil {
		m.watchCancel()
	}
	var err error
	if m.watcher != nil {
		err = m.watcher.Close()
	}
	m.watchWg.Wait()
	return err
}
