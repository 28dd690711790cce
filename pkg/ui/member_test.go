package ui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appevents "github.com/rescp17/roomShare/internal/app_events"
	"github.com/rescp17/roomShare/internal/app_events/member"
	"github.com/rescp17/roomShare/pkg/room"
)

type stubController struct {
	ui     chan tea.Msg
	events chan appevents.AppEvent
}

func newStubController() *stubController {
	return &stubController{
		ui:     make(chan tea.Msg, 16),
		events: make(chan appevents.AppEvent, 16),
	}
}

func (s *stubController) Run(ctx context.Context) error        { <-ctx.Done(); return ctx.Err() }
func (s *stubController) UIMessages() <-chan tea.Msg           { return s.ui }
func (s *stubController) AppEvents() chan<- appevents.AppEvent { return s.events }

func apply(t *testing.T, m tea.Model, msgs ...tea.Msg) model {
	t.Helper()
	for _, msg := range msgs {
		m, _ = m.Update(msg)
	}
	result, ok := m.(model)
	require.True(t, ok)
	return result
}

func joinedModel(t *testing.T) (model, *stubController) {
	t.Helper()
	controller := newStubController()
	m := apply(t, initialModel(controller),
		member.JoinedRoomMsg{SelfID: "self", Room: "movies"},
		member.MemberListMsg{Members: []room.MemberSnapshot{
			{ID: "bob-id", DisplayName: "bob"},
			{ID: "self", DisplayName: "alice"},
		}},
	)
	return m, controller
}

func TestModelTracksRoomAndMembers(t *testing.T) {
	m, _ := joinedModel(t)

	assert.Equal(t, inRoom, m.state)
	assert.Equal(t, "movies", m.roomName)

	peers := m.peerRows()
	require.Len(t, peers, 1, "own row is not listed as a peer")
	assert.Equal(t, "bob-id", peers[0].ID)
	assert.Equal(t, "alice", m.displayName())
}

func TestModelSelectionFollowsMembership(t *testing.T) {
	m, _ := joinedModel(t)

	m.toggleSelection()
	assert.Equal(t, []string{"bob-id"}, m.selectedIDs())

	// Bob leaves; the stale selection is dropped.
	m = apply(t, m, member.MemberListMsg{Members: []room.MemberSnapshot{
		{ID: "self", DisplayName: "alice"},
	}})
	assert.Empty(t, m.selectedIDs())
}

func TestModelSendsPickedFile(t *testing.T) {
	m, controller := joinedModel(t)
	m.toggleSelection()

	m = apply(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.Equal(t, pickingFile, m.state)

	m.input.SetValue("/tmp/report.pdf")
	m = apply(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, inRoom, m.state)

	select {
	case event := <-controller.events:
		send, ok := event.(member.SendFileMsg)
		require.True(t, ok)
		assert.Equal(t, "/tmp/report.pdf", send.Path)
		assert.Equal(t, []string{"bob-id"}, send.Targets)
	default:
		t.Fatal("no send event emitted")
	}
}

func TestModelTracksTransferProgress(t *testing.T) {
	m, _ := joinedModel(t)

	m = apply(t, m,
		member.DownloadProgressMsg{Key: "bob-id#1", FileName: "a.bin", Sender: "bob", Received: 16384, Total: 40000},
		member.UploadProgressMsg{PeerID: "bob-id", FileName: "b.bin", Sent: 100, Total: 200},
	)
	require.Contains(t, m.downloads, "bob-id#1")
	assert.Equal(t, int64(16384), m.downloads["bob-id#1"].received)

	m = apply(t, m,
		member.DownloadCompleteMsg{Key: "bob-id#1", FileName: "a.bin"},
		member.UploadCompleteMsg{PeerID: "bob-id", FileName: "b.bin"},
	)
	assert.True(t, m.downloads["bob-id#1"].done)
	assert.True(t, m.uploads["bob-id/b.bin"].done)

	view := m.View()
	assert.Contains(t, view, "a.bin")
	assert.Contains(t, view, "done")
}

func TestModelShowsError(t *testing.T) {
	m, _ := joinedModel(t)
	m = apply(t, m, appevents.Error{Err: assert.AnError})
	assert.Contains(t, m.View(), "Error")
}

func TestProgressBarBounds(t *testing.T) {
	assert.Contains(t, progressBar(0, 100), "░")
	assert.NotContains(t, progressBar(100, 100), "░")
	assert.Equal(t, "5 B", progressBar(5, 0), "unknown total falls back to plain size")
}
