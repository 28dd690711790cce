package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	appevents "github.com/rescp17/roomShare/internal/app_events"
	"github.com/rescp17/roomShare/internal/app_events/member"
	"github.com/rescp17/roomShare/internal/util"
	"github.com/rescp17/roomShare/pkg/concurrency"
	"github.com/rescp17/roomShare/pkg/discovery"
	"github.com/rescp17/roomShare/pkg/fileinfo"
	"github.com/rescp17/roomShare/pkg/peer"
	"github.com/rescp17/roomShare/pkg/signaling"
	"github.com/rescp17/roomShare/pkg/transfer"
)

const discoverTimeout = 5 * time.Second

// Config holds the member-side settings.
type Config struct {
	// ServerURL is the relay's ws:// endpoint. Empty means discover a relay
	// on the local network via mDNS.
	ServerURL   string
	DisplayName string
	Room        string
	// OutDir is where completed downloads are written.
	OutDir string

	LinkingTimeout time.Duration
}

func (c Config) Validate() error {
	if c.DisplayName == "" {
		return errors.New("display name must not be empty")
	}
	if c.Room == "" {
		return errors.New("room must not be empty")
	}
	if c.OutDir == "" {
		return errors.New("output directory must not be empty")
	}
	return nil
}

// App is the main application logic controller for a room member. It owns the
// relay connection, the negotiation engine and the transfer manager, and
// bridges them to the TUI through message channels.
type App struct {
	cfg        Config
	guard      *concurrency.Guard
	discoverer discovery.Adapter

	uiMessages chan tea.Msg            // App -> TUI
	appEvents  chan appevents.AppEvent // TUI -> App

	// internal carries engine and transfer messages so the app can act on
	// them (e.g. persist downloads) before forwarding to the TUI.
	internal chan tea.Msg
}

// NewApp creates a new member application instance.
func NewApp(cfg Config, adapter discovery.Adapter) *App {
	if cfg.LinkingTimeout <= 0 {
		cfg.LinkingTimeout = peer.DefaultEngineConfig().LinkingTimeout
	}
	return &App{
		cfg:        cfg,
		guard:      concurrency.NewGuard(),
		discoverer: adapter,
		uiMessages: make(chan tea.Msg, 10),
		appEvents:  make(chan appevents.AppEvent),
		internal:   make(chan tea.Msg, 64),
	}
}

// UIMessages returns the channel for the UI to listen on for updates.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

// AppEvents returns a write-only channel for the TUI to send events to the app.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// Run connects to the relay, joins the room and processes events until ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid member config: %w", err)
	}
	if exists, isDir, err := util.CheckDirectory(a.cfg.OutDir); err != nil {
		return fmt.Errorf("cannot use output directory: %w", err)
	} else if exists && !isDir {
		return fmt.Errorf("output path %s is not a directory", a.cfg.OutDir)
	}

	serverURL, err := a.resolveServerURL(ctx)
	if err != nil {
		return err
	}

	conn, err := signaling.Dial(ctx, serverURL, a.cfg.DisplayName, a.cfg.Room)
	if err != nil {
		return err
	}
	defer conn.Close()

	slog.Info("Joined room",
		"room", a.cfg.Room, "member", conn.ID(), "name", a.cfg.DisplayName)
	a.uiMessages <- member.JoinedRoomMsg{SelfID: conn.ID(), Room: a.cfg.Room}

	inbound := transfer.NewManager(a.internal)
	engine := peer.NewEngine(
		conn.ID(), a.cfg.DisplayName,
		conn, peer.NewAPI(peer.Config{}).NewCapability,
		inbound, a.internal,
		peer.EngineConfig{LinkingTimeout: a.cfg.LinkingTimeout},
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := engine.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		return a.dispatchIncoming(ctx, conn, engine)
	})

	g.Go(func() error {
		return a.forwardInternal(ctx)
	})

	g.Go(func() error {
		return a.handleAppEvents(ctx, engine)
	})

	return g.Wait()
}

// resolveServerURL returns the configured relay URL, or browses the local
// network for one when none is configured.
func (a *App) resolveServerURL(ctx context.Context) (string, error) {
	if a.cfg.ServerURL != "" {
		return a.cfg.ServerURL, nil
	}
	if a.discoverer == nil {
		return "", errors.New("no relay URL configured and discovery unavailable")
	}

	a.uiMessages <- member.StatusUpdateMsg{Message: "Looking for a relay on the local network..."}

	browseCtx, cancel := context.WithTimeout(ctx, discoverTimeout)
	defer cancel()

	results := a.discoverer.Discover(browseCtx, fmt.Sprintf("%s.%s.", discovery.ServiceType, discovery.DefaultDomain))
	for {
		select {
		case <-browseCtx.Done():
			return "", errors.New("no relay found on the local network")
		case result, ok := <-results:
			if !ok {
				return "", errors.New("no relay found on the local network")
			}
			if result.Error != nil {
				return "", result.Error
			}
			if len(result.Services) == 0 {
				continue
			}
			svc := result.Services[0]
			addr := net.JoinHostPort(svc.Addr.String(), fmt.Sprintf("%d", svc.Port))
			slog.Info("Discovered relay", "name", svc.Name, "addr", addr)
			return fmt.Sprintf("ws://%s/ws", addr), nil
		}
	}
}

// dispatchIncoming routes relay frames to the negotiation engine.
func (a *App) dispatchIncoming(ctx context.Context, conn *signaling.Client, engine *peer.Engine) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-conn.Incoming():
			if !ok {
				return errors.New("relay connection lost")
			}

			switch msg.Type {
			case signaling.TypeMembers:
				var payload signaling.MembersPayload
				if err := msg.UnmarshalPayload(&payload); err != nil {
					slog.Warn("Ignoring malformed members broadcast", "error", err)
					continue
				}
				engine.HandleMembership(payload.Members)
				a.uiMessages <- member.MemberListMsg{Members: payload.Members}

			case signaling.TypeSignal:
				var payload signaling.SignalPayload
				if err := msg.UnmarshalPayload(&payload); err != nil {
					slog.Warn("Ignoring malformed signal", "error", err)
					continue
				}
				engine.HandleSignal(payload.SenderID, payload.Offer)

			case signaling.TypeCandidate:
				var payload signaling.CandidatePayload
				if err := msg.UnmarshalPayload(&payload); err != nil {
					slog.Warn("Ignoring malformed candidate", "error", err)
					continue
				}
				engine.HandleCandidate(payload.SenderID, payload.Candidate)

			default:
				slog.Warn("Ignoring unexpected relay message", "type", msg.Type)
			}
		}
	}
}

// forwardInternal relays engine and transfer messages to the TUI, persisting
// completed downloads on the way.
func (a *App) forwardInternal(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-a.internal:
			if complete, ok := msg.(member.DownloadCompleteMsg); ok {
				a.saveDownload(complete)
			}
			a.uiMessages <- msg
		}
	}
}

// handleAppEvents processes commands coming from the TUI.
func (a *App) handleAppEvents(ctx context.Context, engine *peer.Engine) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-a.appEvents:
			switch e := event.(type) {
			case member.SendFileMsg:
				a.startSend(engine, e)
			}
		}
	}
}

// startSend validates the picked file and hands it to the engine. The guard
// rejects a second send while one is still being prepared.
func (a *App) startSend(engine *peer.Engine, e member.SendFileMsg) {
	err := a.guard.Execute(func() error {
		info, err := fileinfo.Describe(e.Path)
		if err != nil {
			return err
		}

		if _, err := info.CalcChecksum(); err != nil {
			return err
		}

		data, err := os.ReadFile(e.Path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", e.Path, err)
		}

		slog.Info("Sending file",
			"file", info.Name, "size", info.Size, "mime", info.MimeType,
			"sha256", info.Checksum, "targets", len(e.Targets))
		a.uiMessages <- member.StatusUpdateMsg{
			Message: fmt.Sprintf("Sending %s (%s)...", info.Name, util.FormatSize(info.Size)),
		}

		engine.SendFile(transfer.NewBytesSource(data), info.Name, e.Targets)
		return nil
	})
	if err != nil {
		a.sendAndLogError("Failed to start transfer", err)
	}
}

// saveDownload writes a completed artifact into the output directory. A name
// collision gets a numeric suffix rather than overwriting.
func (a *App) saveDownload(msg member.DownloadCompleteMsg) {
	if err := os.MkdirAll(a.cfg.OutDir, 0o755); err != nil {
		a.sendAndLogError("Failed to create output directory", err)
		return
	}

	path := uniquePath(filepath.Join(a.cfg.OutDir, filepath.Base(msg.FileName)))
	if err := os.WriteFile(path, msg.Data, 0o644); err != nil {
		a.sendAndLogError("Failed to save download", err)
		return
	}

	slog.Info("Download saved",
		"file", msg.FileName, "path", path, "sender", msg.Sender,
		"sha256", fileinfo.ChecksumBytes(msg.Data))
	a.uiMessages <- member.StatusUpdateMsg{
		Message: fmt.Sprintf("Saved %s from %s to %s", msg.FileName, msg.Sender, path),
	}
}

// sendAndLogError is a helper function to both log an error and send it to the UI.
func (a *App) sendAndLogError(baseMessage string, err error) {
	slog.Error(baseMessage, "error", err)
	a.uiMessages <- appevents.Error{Err: fmt.Errorf("%s: %w", baseMessage, err)}
}

func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
