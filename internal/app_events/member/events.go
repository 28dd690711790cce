package member

import (
	appevents "github.com/rescp17/roomShare/internal/app_events"
	"github.com/rescp17/roomShare/pkg/room"
)

// --- App Events (from TUI to App) ---

// SendFileMsg is sent when the user picks a file to send. Targets is the set
// of member identities selected on the checklist; empty means everyone.
type SendFileMsg struct {
	appevents.Event
	Path    string
	Targets []string
}

var _ appevents.AppEvent = (*SendFileMsg)(nil)

// --- UI Messages (from App to TUI) ---

// JoinedRoomMsg carries the member's relay-assigned identity after the join
// handshake completes.
type JoinedRoomMsg struct {
	SelfID string
	Room   string
}

// MemberListMsg carries a full membership snapshot of the room, self included.
type MemberListMsg struct {
	Members []room.MemberSnapshot
}

// LinkStateMsg reports a peer link state change.
type LinkStateMsg struct {
	PeerID   string
	PeerName string
	State    string
}

type StatusUpdateMsg struct {
	Message string
}

// DownloadProgressMsg reports progress of one inbound transfer session.
type DownloadProgressMsg struct {
	Key      string
	FileName string
	Sender   string
	Received int64
	Total    int64
}

// DownloadCompleteMsg is emitted exactly once per session, when the received
// byte count matches the announced size. Data is the reassembled file.
type DownloadCompleteMsg struct {
	Key      string
	FileName string
	Sender   string
	Data     []byte
}

// DownloadAbandonedMsg is emitted when a peer link closes mid-transfer; the
// partial data is discarded, never exposed.
type DownloadAbandonedMsg struct {
	Key      string
	FileName string
}

// UploadProgressMsg reports progress of one outbound transfer.
type UploadProgressMsg struct {
	PeerID   string
	FileName string
	Sent     int64
	Total    int64
}

type UploadCompleteMsg struct {
	PeerID   string
	FileName string
}
