package transfer

import (
	"bytes"
	"fmt"
	"sync"
)

// SessionState tracks one inbound transfer's lifecycle.
type SessionState int

const (
	StateReceiving SessionState = iota
	StateComplete
	StateAbandoned
)

// Session reassembles one inbound file from the ordered chunk stream of a
// single data channel. Chunks are kept until completion, then concatenated
// once and released.
type Session struct {
	Key   string
	Peer  string
	Label Label

	mu       sync.Mutex
	received int64
	chunks   [][]byte
	state    SessionState
}

func newSession(key, peerID string, label Label) *Session {
	return &Session{Key: key, Peer: peerID, Label: label}
}

// Append adds one chunk in arrival order. It reports the new received total
// and whether this chunk completed the file. receivedBytes never exceeds the
// announced size; a chunk that would overflow is a protocol violation.
func (s *Session) Append(data []byte) (received int64, done bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReceiving {
		return s.received, false, fmt.Errorf("session %s is not receiving", s.Key)
	}
	if s.received+int64(len(data)) > s.Label.FileSize {
		return s.received, false, fmt.Errorf(
			"chunk overflows announced size: %d + %d > %d",
			s.received, len(data), s.Label.FileSize)
	}

	// Chunk buffers are owned by the channel and reused; copy before keeping.
	chunk := make([]byte, len(data))
	copy(chunk, data)
	s.chunks = append(s.chunks, chunk)
	s.received += int64(len(chunk))

	return s.received, s.received == s.Label.FileSize, nil
}

// Finalize concatenates the chunk sequence into the completed artifact and
// frees the per-chunk buffers. It may be called once, on completion.
func (s *Session) Finalize() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReceiving {
		return nil, fmt.Errorf("session %s already finalized", s.Key)
	}
	if s.received != s.Label.FileSize {
		return nil, fmt.Errorf("session %s incomplete: %d of %d bytes",
			s.Key, s.received, s.Label.FileSize)
	}

	artifact := bytes.Join(s.chunks, nil)
	s.chunks = nil
	s.state = StateComplete
	return artifact, nil
}

// Abandon discards the partial data. The session emits no artifact.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateReceiving {
		s.chunks = nil
		s.state = StateAbandoned
	}
}

// Received returns how many bytes have arrived so far.
func (s *Session) Received() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

// State returns the session's lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
