// Package session implements the in-process session registry: per-session
// conversation state keyed by ID, with get_or_create/list_ids/list_info and
// a per-session exclusive lock held only across synchronous mutation.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sheepbun/yips/internal/model"
)

// Handle is a shared reference to one Session record. Consumers hold its
// lock only across append/snapshot operations, never across network or
// subprocess I/O, per spec.md §4.6.
type Handle struct {
	mu      sync.Mutex
	session model.Session
}

// ID returns the session's immutable identifier.
func (h *Handle) ID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.ID
}

// SetWorkingDirectory updates the session's working directory (last write
// wins across concurrent Chat requests for the same session).
func (h *Handle) SetWorkingDirectory(wd string) {
	if wd == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.session.WorkingDirectory = wd
}

// WorkingDirectory returns the session's current working directory.
func (h *Handle) WorkingDirectory() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session.WorkingDirectory
}

// AppendUserMessage appends a User message and returns a snapshot of the
// full message log for a turn to operate on.
func (h *Handle) AppendUserMessage(content string) []model.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.session.Messages = append(h.session.Messages, model.Message{Role: model.RoleUser, Content: content})
	return append([]model.Message(nil), h.session.Messages...)
}

// ReplaceMessages overwrites the session's message log with the result of a
// completed turn.
func (h *Handle) ReplaceMessages(messages []model.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.session.Messages = messages
}

// Info returns the list_info() summary view of the session.
func (h *Handle) Info() model.Info {
	h.mu.Lock()
	defer h.mu.Unlock()
	return model.Info{ID: h.session.ID, CreatedAt: h.session.CreatedAt, MessageCount: len(h.session.Messages)}
}

// Manager is the process-wide registry of sessions keyed by ID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Handle
}

// NewManager returns an empty session registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Handle)}
}

// GetOrCreate returns the existing session handle for id, or creates one
// (minting a UUID v4 if id is empty). The resolved id is returned alongside
// the handle since a caller may not have supplied one.
func (m *Manager) GetOrCreate(id, workingDirectory string) (*Handle, string) {
	if id != "" {
		m.mu.RLock()
		h, ok := m.sessions[id]
		m.mu.RUnlock()
		if ok {
			h.SetWorkingDirectory(workingDirectory)
			return h, id
		}
	}

	resolvedID := id
	if resolvedID == "" {
		resolvedID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.sessions[resolvedID]; ok {
		h.SetWorkingDirectory(workingDirectory)
		return h, resolvedID
	}

	h := &Handle{session: model.Session{
		ID:               resolvedID,
		CreatedAt:        time.Now(),
		WorkingDirectory: workingDirectory,
	}}
	m.sessions[resolvedID] = h
	return h, resolvedID
}

// ListIDs returns every known session id.
func (m *Manager) ListIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// ListInfo returns the summary view of every known session.
func (m *Manager) ListInfo() []model.Info {
	m.mu.RLock()
	handles := make([]*Handle, 0, len(m.sessions))
	for _, h := range m.sessions {
		handles = append(handles, h)
	}
	m.mu.RUnlock()

	infos := make([]model.Info, 0, len(handles))
	for _, h := range handles {
		infos = append(infos, h.Info())
	}
	return infos
}
