package transfer

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescp17/roomShare/internal/app_events/member"
)

func acceptChannel(t *testing.T, m *Manager, peerID string, label Label, streamID uint16) *testChannel {
	t.Helper()
	encoded, err := label.Encode()
	require.NoError(t, err)
	dc := &testChannel{label: encoded, streamID: streamID}
	require.NoError(t, m.Accept(peerID, dc))
	return dc
}

func drainUI(ui <-chan tea.Msg) []tea.Msg {
	var msgs []tea.Msg
	for {
		select {
		case msg := <-ui:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func TestManagerReassemblesChunkedFile(t *testing.T) {
	ui := make(chan tea.Msg, 32)
	m := NewManager(ui)

	data := patternBytes(40000)
	label := Label{FileName: "report.pdf", FileSize: 40000, Sender: "alice"}
	dc := acceptChannel(t, m, "alice-id", label, 1)
	require.Equal(t, 1, m.InFlight())

	dc.onMessage(data[:16384])
	dc.onMessage(data[16384:32768])
	dc.onMessage(data[32768:])

	assert.Zero(t, m.InFlight())

	var progress []int64
	var complete *member.DownloadCompleteMsg
	for _, msg := range drainUI(ui) {
		switch msg := msg.(type) {
		case member.DownloadProgressMsg:
			progress = append(progress, msg.Received)
		case member.DownloadCompleteMsg:
			complete = &msg
		}
	}

	assert.Equal(t, []int64{0, 16384, 32768, 40000}, progress)
	require.NotNil(t, complete)
	assert.Equal(t, "report.pdf", complete.FileName)
	assert.Equal(t, "alice", complete.Sender)
	assert.Equal(t, data, complete.Data)
}

func TestManagerZeroByteFileCompletesOnOpen(t *testing.T) {
	ui := make(chan tea.Msg, 8)
	m := NewManager(ui)

	label := Label{FileName: "empty.txt", FileSize: 0, Sender: "alice"}
	dc := acceptChannel(t, m, "alice-id", label, 1)

	dc.onOpen()
	assert.Zero(t, m.InFlight())

	var complete *member.DownloadCompleteMsg
	for _, msg := range drainUI(ui) {
		if msg, ok := msg.(member.DownloadCompleteMsg); ok {
			complete = &msg
		}
	}
	require.NotNil(t, complete)
	assert.Empty(t, complete.Data)
}

func TestManagerRejectsUnparsableLabel(t *testing.T) {
	m := NewManager(nil)
	err := m.Accept("alice-id", &testChannel{label: "not json"})
	assert.Error(t, err)
	assert.Zero(t, m.InFlight())
}

func TestManagerConcurrentFilesFromOnePeer(t *testing.T) {
	ui := make(chan tea.Msg, 32)
	m := NewManager(ui)

	first := acceptChannel(t, m, "alice-id", Label{FileName: "a.bin", FileSize: 3, Sender: "alice"}, 1)
	second := acceptChannel(t, m, "alice-id", Label{FileName: "b.bin", FileSize: 2, Sender: "alice"}, 3)
	require.Equal(t, 2, m.InFlight())

	first.onMessage([]byte{1, 2, 3})
	assert.Equal(t, 1, m.InFlight())

	second.onMessage([]byte{4, 5})
	assert.Zero(t, m.InFlight())
}

func TestManagerAbandonPeerDiscardsPartialDownloads(t *testing.T) {
	ui := make(chan tea.Msg, 32)
	m := NewManager(ui)

	data := patternBytes(40000)
	label := Label{FileName: "report.pdf", FileSize: 40000, Sender: "alice"}
	dc := acceptChannel(t, m, "alice-id", label, 1)
	acceptChannel(t, m, "carol-id", Label{FileName: "c.bin", FileSize: 10, Sender: "carol"}, 1)

	dc.onMessage(data[:16384])
	dc.onMessage(data[16384:20000])

	m.AbandonPeer("alice-id")
	assert.Equal(t, 1, m.InFlight(), "other peers' sessions survive")

	var abandoned *member.DownloadAbandonedMsg
	var completed int
	for _, msg := range drainUI(ui) {
		switch msg := msg.(type) {
		case member.DownloadAbandonedMsg:
			abandoned = &msg
		case member.DownloadCompleteMsg:
			completed++
		}
	}
	require.NotNil(t, abandoned)
	assert.Equal(t, "report.pdf", abandoned.FileName)
	assert.Zero(t, completed, "partial data never surfaces as an artifact")

	// Late chunks for the dropped session are ignored.
	dc.onMessage(data[20000:36384])
	assert.Equal(t, 1, m.InFlight())
}

func TestManagerAbandonsSessionOnOverflowingChunk(t *testing.T) {
	ui := make(chan tea.Msg, 16)
	m := NewManager(ui)

	label := Label{FileName: "a.bin", FileSize: 10, Sender: "alice"}
	dc := acceptChannel(t, m, "alice-id", label, 1)

	dc.onMessage(patternBytes(11))
	assert.Zero(t, m.InFlight())

	var abandoned bool
	for _, msg := range drainUI(ui) {
		if _, ok := msg.(member.DownloadAbandonedMsg); ok {
			abandoned = true
		}
	}
	assert.True(t, abandoned)
}
