package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rescp17/roomShare/internal/app_events/member"
)

const (
	// Flow control marks for the data channel's internal buffer. The sender
	// stops reading new slices while more than highWaterMark bytes are queued
	// and resumes once the channel drains below lowWaterMark.
	highWaterMark = 1 << 20
	lowWaterMark  = 256 * 1024

	// openTimeout bounds the wait for the channel to reach open state after
	// negotiation.
	openTimeout = 30 * time.Second
)

// SendSession streams one file over one data channel, strictly in order.
// Reliability and ordering come from the channel itself; the session adds no
// acking or redundancy on top.
type SendSession struct {
	peerID     string
	dc         DataChannel
	src        ByteSource
	label      Label
	uiMessages chan<- tea.Msg

	opened  chan struct{}
	drained chan struct{}
}

// NewSendSession wires the open and buffer callbacks. It must be called
// before the channel can open, i.e. right after the channel is created.
func NewSendSession(peerID string, dc DataChannel, src ByteSource, label Label, uiMessages chan<- tea.Msg) *SendSession {
	s := &SendSession{
		peerID:     peerID,
		dc:         dc,
		src:        src,
		label:      label,
		uiMessages: uiMessages,
		opened:     make(chan struct{}, 1),
		drained:    make(chan struct{}, 1),
	}
	dc.OnOpen(func() {
		select {
		case s.opened <- struct{}{}:
		default:
		}
	})
	dc.SetBufferedAmountLowThreshold(lowWaterMark)
	dc.OnBufferedAmountLow(func() {
		select {
		case s.drained <- struct{}{}:
		default:
		}
	})
	return s
}

// Run waits for the channel to open and streams the source as fixed-size
// chunks. It returns once every byte has been handed to the channel.
func (s *SendSession) Run(ctx context.Context) error {
	select {
	case <-s.opened:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(openTimeout):
		return fmt.Errorf("timed out waiting for channel %q to open", s.dc.Label())
	}

	slog.Info("Channel open, streaming file",
		"peer", s.peerID, "file", s.label.FileName, "size", s.label.FileSize)

	chunker := NewChunker(s.src)
	for {
		chunk, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read chunk: %w", err)
		}

		if err := s.waitForWindow(ctx); err != nil {
			return err
		}
		if err := s.dc.Send(chunk); err != nil {
			return fmt.Errorf("failed to send chunk: %w", err)
		}

		s.emit(member.UploadProgressMsg{
			PeerID:   s.peerID,
			FileName: s.label.FileName,
			Sent:     chunker.Offset(),
			Total:    s.src.Size(),
		})
	}

	s.emit(member.UploadCompleteMsg{PeerID: s.peerID, FileName: s.label.FileName})
	return nil
}

// waitForWindow blocks while the channel's internal buffer is above the high
// water mark. Back-pressure is delegated entirely to the channel's own
// buffering; the session only avoids piling more onto a full buffer.
func (s *SendSession) waitForWindow(ctx context.Context) error {
	for s.dc.BufferedAmount() >= highWaterMark {
		select {
		case <-s.drained:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *SendSession) emit(msg tea.Msg) {
	if s.uiMessages != nil {
		s.uiMessages <- msg
	}
}
