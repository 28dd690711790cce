package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rescp17/roomShare/pkg/client"
	"github.com/rescp17/roomShare/pkg/discovery"
	"github.com/rescp17/roomShare/pkg/relay"
	"github.com/rescp17/roomShare/pkg/ui"
)

func main() {
	// The TUI owns the terminal; logs go to a file instead.
	f, _ := os.OpenFile("debug.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close log file", "error", err)
		}
	}()
	log.SetOutput(f)
	slog.SetDefault(slog.New(slog.NewTextHandler(f, nil)))

	cmd := &cobra.Command{
		Use:   "roomshare",
		Short: "Room based file sharing over direct peer links",
	}

	cmd.AddCommand(relayCmd())
	cmd.AddCommand(joinCmd())

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

func relayCmd() *cobra.Command {
	var (
		addr     string
		announce bool
	)

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the room relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := relay.NewServer(relay.Config{Addr: addr})
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return srv.Run(ctx)
			})
			if announce {
				g.Go(func() error {
					port, err := listenPort(addr)
					if err != nil {
						return err
					}
					hostname, _ := os.Hostname()
					adapter := &discovery.MDNSAdapter{}
					return adapter.Announce(ctx, discovery.ServiceInfo{
						Name:   fmt.Sprintf("roomshare-%s", hostname),
						Type:   discovery.ServiceType,
						Domain: discovery.DefaultDomain,
						Port:   port,
					})
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", relay.DefaultConfig().Addr, "Listen address")
	cmd.Flags().BoolVar(&announce, "announce", true, "Announce the relay on the local network via mDNS")
	return cmd
}

func joinCmd() *cobra.Command {
	var (
		server  string
		name    string
		roomArg string
		outDir  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a room and share files with its members",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				hostname, err := os.Hostname()
				if err != nil {
					return fmt.Errorf("no display name given and hostname unavailable: %w", err)
				}
				name = hostname
			}

			app := client.NewApp(client.Config{
				ServerURL:      server,
				DisplayName:    name,
				Room:           roomArg,
				OutDir:         outDir,
				LinkingTimeout: timeout,
			}, &discovery.MDNSAdapter{})

			return ui.Run(cmd.Context(), app)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Relay ws:// URL (empty: discover via mDNS)")
	cmd.Flags().StringVar(&name, "name", "", "Display name (default: hostname)")
	cmd.Flags().StringVar(&roomArg, "room", "", "Room to join")
	cmd.Flags().StringVar(&outDir, "out", "downloads", "Directory for received files")
	cmd.Flags().DurationVar(&timeout, "linking-timeout", 30*time.Second, "Peer negotiation timeout")
	cmd.MarkFlagRequired("room")
	return cmd
}

func listenPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("cannot announce relay, bad listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("cannot announce relay, bad port in %q: %w", addr, err)
	}
	return port, nil
}
