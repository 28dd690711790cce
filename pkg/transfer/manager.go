package transfer

import (
	"fmt"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rescp17/roomShare/internal/app_events/member"
)

// Manager owns all inbound transfer sessions of one member, across all peer
// links. Sessions are keyed by peer identity plus channel stream id, so the
// same peer can send several files concurrently.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	uiMessages chan<- tea.Msg
}

func NewManager(uiMessages chan<- tea.Msg) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		uiMessages: uiMessages,
	}
}

// Accept registers an inbound data channel as a new transfer session. The
// channel label carries the file metadata; a channel with an unparsable
// label is rejected.
func (m *Manager) Accept(peerID string, dc DataChannel) error {
	label, err := ParseLabel(dc.Label())
	if err != nil {
		return fmt.Errorf("rejecting channel from %s: %w", peerID, err)
	}

	key := fmt.Sprintf("%s#%d", peerID, dc.StreamID())
	session := newSession(key, peerID, label)

	m.mu.Lock()
	m.sessions[key] = session
	m.mu.Unlock()

	slog.Info("Inbound transfer started",
		"peer", peerID, "file", label.FileName, "size", label.FileSize, "sender", label.Sender)

	// A zero-byte file has no chunks; it completes the moment the channel
	// opens.
	dc.OnOpen(func() {
		if label.FileSize == 0 {
			m.complete(session)
		}
	})
	dc.OnMessage(func(data []byte) {
		m.handleChunk(session, data)
	})

	m.emit(member.DownloadProgressMsg{
		Key:      key,
		FileName: label.FileName,
		Sender:   label.Sender,
		Received: 0,
		Total:    label.FileSize,
	})
	return nil
}

// AbandonPeer discards every in-flight session from the given peer. Partial
// data is dropped, never exposed as an artifact.
func (m *Manager) AbandonPeer(peerID string) {
	m.mu.Lock()
	var abandoned []*Session
	for key, session := range m.sessions {
		if session.Peer == peerID {
			abandoned = append(abandoned, session)
			delete(m.sessions, key)
		}
	}
	m.mu.Unlock()

	for _, session := range abandoned {
		session.Abandon()
		slog.Info("Transfer abandoned", "peer", peerID, "file", session.Label.FileName)
		m.emit(member.DownloadAbandonedMsg{Key: session.Key, FileName: session.Label.FileName})
	}
}

// InFlight reports the number of sessions still receiving.
func (m *Manager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) handleChunk(session *Session, data []byte) {
	received, done, err := session.Append(data)
	if err != nil {
		slog.Warn("Dropping transfer after bad chunk",
			"peer", session.Peer, "file", session.Label.FileName, "error", err)
		m.remove(session.Key)
		session.Abandon()
		m.emit(member.DownloadAbandonedMsg{Key: session.Key, FileName: session.Label.FileName})
		return
	}

	m.emit(member.DownloadProgressMsg{
		Key:      session.Key,
		FileName: session.Label.FileName,
		Sender:   session.Label.Sender,
		Received: received,
		Total:    session.Label.FileSize,
	})

	if done {
		m.complete(session)
	}
}

func (m *Manager) complete(session *Session) {
	m.remove(session.Key)

	artifact, err := session.Finalize()
	if err != nil {
		// Finalize can only fail if completion already fired; never twice.
		slog.Debug("Ignoring duplicate completion", "key", session.Key, "error", err)
		return
	}

	slog.Info("Inbound transfer complete",
		"peer", session.Peer, "file", session.Label.FileName, "size", len(artifact))
	m.emit(member.DownloadCompleteMsg{
		Key:      session.Key,
		FileName: session.Label.FileName,
		Sender:   session.Label.Sender,
		Data:     artifact,
	})
}

func (m *Manager) remove(key string) {
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()
}

func (m *Manager) emit(msg tea.Msg) {
	if m.uiMessages != nil {
		m.uiMessages <- msg
	}
}
