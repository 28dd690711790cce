package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/rescp17/roomShare/internal/app_events"
	"github.com/rescp17/roomShare/internal/app_events/member"
	"github.com/rescp17/roomShare/internal/style"
	"github.com/rescp17/roomShare/internal/util"
	"github.com/rescp17/roomShare/pkg/room"
)

// memberState defines the different states of the member UI.
type memberState int

const (
	joining memberState = iota
	inRoom
	pickingFile
)

// --- Key Map ---
type KeyMap struct {
	Up           key.Binding
	Down         key.Binding
	ToggleSelect key.Binding
	PickFile     key.Binding
	Confirm      key.Binding
	Cancel       key.Binding
	Quit         key.Binding
}

var DefaultKeyMap = KeyMap{
	Up:           key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
	Down:         key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
	ToggleSelect: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select recipient")),
	PickFile:     key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "send a file")),
	Confirm:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
	Cancel:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	Quit:         key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

type downloadView struct {
	fileName string
	sender   string
	received int64
	total    int64
	done     bool
	dropped  bool
}

type uploadView struct {
	fileName string
	peerID   string
	sent     int64
	total    int64
	done     bool
}

type model struct {
	controller AppController
	keys       KeyMap

	state   memberState
	spinner spinner.Model
	table   table.Model
	input   textinput.Model

	selfID     string
	roomName   string
	members    []room.MemberSnapshot
	linkStates map[string]string
	selected   map[string]struct{}

	downloads map[string]*downloadView
	uploads   map[string]*uploadView

	status string
	err    error
}

var memberColumns = []table.Column{
	{Title: " ", Width: 3},
	{Title: "Name", Width: 20},
	{Title: "Link", Width: 10},
	{Title: "ID", Width: 14},
}

func initialModel(controller AppController) model {
	t := table.New(
		table.WithColumns(memberColumns),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(0),
	)
	t.SetStyles(style.NewTableStyles())

	input := textinput.New()
	input.Placeholder = "path of the file to send"

	return model{
		controller: controller,
		keys:       DefaultKeyMap,
		state:      joining,
		spinner:    style.NewSpinner(),
		table:      t,
		input:      input,
		linkStates: make(map[string]string),
		selected:   make(map[string]struct{}),
		downloads:  make(map[string]*downloadView),
		uploads:    make(map[string]*uploadView),
	}
}

// listenForAppMessages is a command that listens for messages from the app controller.
func (m *model) listenForAppMessages() tea.Cmd {
	return func() tea.Msg {
		return <-m.controller.UIMessages()
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForAppMessages())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cmd, processed := m.handleAppMessage(msg); processed {
		return m, cmd
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if key.Matches(keyMsg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m.handleKey(keyMsg)
	}

	var spinCmd tea.Cmd
	m.spinner, spinCmd = m.spinner.Update(msg)
	return m, spinCmd
}

func (m *model) handleAppMessage(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case member.JoinedRoomMsg:
		m.selfID = msg.SelfID
		m.roomName = msg.Room
		if m.state == joining {
			m.state = inRoom
		}
		return m.listenForAppMessages(), true

	case member.MemberListMsg:
		m.members = msg.Members
		m.pruneSelection()
		m.refreshTable()
		return m.listenForAppMessages(), true

	case member.LinkStateMsg:
		m.linkStates[msg.PeerID] = msg.State
		m.refreshTable()
		return m.listenForAppMessages(), true

	case member.StatusUpdateMsg:
		m.status = msg.Message
		return m.listenForAppMessages(), true

	case member.DownloadProgressMsg:
		d, ok := m.downloads[msg.Key]
		if !ok {
			d = &downloadView{fileName: msg.FileName, sender: msg.Sender, total: msg.Total}
			m.downloads[msg.Key] = d
		}
		d.received = msg.Received
		return m.listenForAppMessages(), true

	case member.DownloadCompleteMsg:
		if d, ok := m.downloads[msg.Key]; ok {
			d.received = d.total
			d.done = true
		}
		return m.listenForAppMessages(), true

	case member.DownloadAbandonedMsg:
		if d, ok := m.downloads[msg.Key]; ok {
			d.dropped = true
		}
		return m.listenForAppMessages(), true

	case member.UploadProgressMsg:
		key := msg.PeerID + "/" + msg.FileName
		u, ok := m.uploads[key]
		if !ok {
			u = &uploadView{fileName: msg.FileName, peerID: msg.PeerID, total: msg.Total}
			m.uploads[key] = u
		}
		u.sent = msg.Sent
		return m.listenForAppMessages(), true

	case member.UploadCompleteMsg:
		key := msg.PeerID + "/" + msg.FileName
		u, ok := m.uploads[key]
		if !ok {
			u = &uploadView{fileName: msg.FileName, peerID: msg.PeerID}
			m.uploads[key] = u
		}
		u.sent = u.total
		u.done = true
		return m.listenForAppMessages(), true

	case appevents.Error:
		m.err = msg.Err
		return m.listenForAppMessages(), true
	}
	return nil, false
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.state {
	case inRoom:
		switch {
		case key.Matches(msg, m.keys.ToggleSelect):
			m.toggleSelection()
			m.refreshTable()
			return m, nil
		case key.Matches(msg, m.keys.PickFile):
			m.state = pickingFile
			m.input.SetValue("")
			m.input.Focus()
			return m, textinput.Blink
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case pickingFile:
		switch {
		case key.Matches(msg, m.keys.Confirm):
			path := strings.TrimSpace(m.input.Value())
			if path != "" {
				m.controller.AppEvents() <- member.SendFileMsg{Path: path, Targets: m.selectedIDs()}
			}
			m.state = inRoom
			m.input.Blur()
			return m, nil
		case key.Matches(msg, m.keys.Cancel):
			m.state = inRoom
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// toggleSelection flips the recipient mark under the cursor. The member's own
// row cannot be selected.
func (m *model) toggleSelection() {
	peers := m.peerRows()
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(peers) {
		return
	}
	id := peers[cursor].ID
	if _, ok := m.selected[id]; ok {
		delete(m.selected, id)
	} else {
		m.selected[id] = struct{}{}
	}
}

// pruneSelection drops selections for members no longer in the room.
func (m *model) pruneSelection() {
	present := make(map[string]struct{}, len(m.members))
	for _, snapshot := range m.members {
		present[snapshot.ID] = struct{}{}
	}
	for id := range m.selected {
		if _, ok := present[id]; !ok {
			delete(m.selected, id)
		}
	}
}

func (m *model) selectedIDs() []string {
	ids := make([]string, 0, len(m.selected))
	for id := range m.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// peerRows lists the other members, in snapshot order.
func (m *model) peerRows() []room.MemberSnapshot {
	peers := make([]room.MemberSnapshot, 0, len(m.members))
	for _, snapshot := range m.members {
		if snapshot.ID != m.selfID {
			peers = append(peers, snapshot)
		}
	}
	return peers
}

func (m *model) refreshTable() {
	peers := m.peerRows()
	rows := make([]table.Row, 0, len(peers))
	for _, peer := range peers {
		mark := " "
		if _, ok := m.selected[peer.ID]; ok {
			mark = "✓"
		}
		state, ok := m.linkStates[peer.ID]
		if !ok {
			state = "absent"
		}
		rows = append(rows, table.Row{mark, peer.DisplayName, state, shortID(peer.ID)})
	}
	m.table.SetRows(rows)
	m.table.SetHeight(len(rows) + 1)
}

func (m model) View() string {
	if m.err != nil {
		return style.ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)) +
			style.HelpStyle.Render("\nPress ctrl+c to quit\n")
	}

	var b strings.Builder

	switch m.state {
	case joining:
		fmt.Fprintf(&b, "\n%s Joining room...\n", m.spinner.View())

	case inRoom, pickingFile:
		b.WriteString(style.TitleStyle.Render(fmt.Sprintf("Room %s", m.roomName)))
		fmt.Fprintf(&b, "  you are %s (%s)\n\n", style.HighlightFontStyle.Render(m.displayName()), shortID(m.selfID))

		if len(m.peerRows()) == 0 {
			fmt.Fprintf(&b, "%s Waiting for other members...\n", m.spinner.View())
		} else {
			b.WriteString(style.BaseStyle.Render(m.table.View()))
			b.WriteString("\n")
		}

		m.renderTransfers(&b)

		if m.state == pickingFile {
			fmt.Fprintf(&b, "\nSend file: %s\n", m.input.View())
			b.WriteString(style.HelpStyle.Render("enter to send, esc to cancel\n"))
		} else {
			if m.status != "" {
				fmt.Fprintf(&b, "\n%s\n", m.status)
			}
			b.WriteString(style.HelpStyle.Render("\nspace select recipients · ctrl+p send a file · ctrl+c quit\n"))
		}
	}

	return b.String()
}

func (m model) renderTransfers(b *strings.Builder) {
	if len(m.downloads) > 0 {
		b.WriteString("\nDownloads:\n")
		for _, key := range sortedKeys(m.downloads) {
			d := m.downloads[key]
			label := util.PadRight(fmt.Sprintf("%s from %s", d.fileName, d.sender), 34)
			switch {
			case d.dropped:
				fmt.Fprintf(b, "  %s %s\n", label, style.ErrorStyle.Render("dropped"))
			case d.done:
				fmt.Fprintf(b, "  %s %s (%s)\n", label, style.SuccessStyle.Render("done"), util.FormatSize(d.total))
			default:
				fmt.Fprintf(b, "  %s %s\n", label, progressBar(d.received, d.total))
			}
		}
	}

	if len(m.uploads) > 0 {
		b.WriteString("\nUploads:\n")
		for _, key := range sortedKeys(m.uploads) {
			u := m.uploads[key]
			label := util.PadRight(fmt.Sprintf("%s to %s", u.fileName, shortID(u.peerID)), 34)
			if u.done {
				fmt.Fprintf(b, "  %s %s\n", label, style.SuccessStyle.Render("done"))
			} else {
				fmt.Fprintf(b, "  %s %s\n", label, progressBar(u.sent, u.total))
			}
		}
	}
}

func (m model) displayName() string {
	for _, snapshot := range m.members {
		if snapshot.ID == m.selfID {
			return snapshot.DisplayName
		}
	}
	return "?"
}

const barWidth = 24

func progressBar(current, total int64) string {
	if total <= 0 {
		return util.FormatSize(current)
	}
	filled := int(current * barWidth / total)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return fmt.Sprintf("%s %s / %s", bar, util.FormatSize(current), util.FormatSize(total))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
