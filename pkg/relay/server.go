package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Config holds the relay server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
}

func DefaultConfig() Config {
	return Config{Addr: ":8080"}
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	return nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  maxMessageSize,
	WriteBufferSize: maxMessageSize,
	// The relay carries no secrets and assigns identities itself; browser
	// clients connect from arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server terminates member connections and hands them to the hub.
type Server struct {
	cfg Config
	hub *Hub
}

func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid relay config: %w", err)
	}
	return &Server{cfg: cfg, hub: NewHub()}, nil
}

// Hub returns the server's hub, so callers embedding the handler in their own
// listener can run the hub loop themselves.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the HTTP handler serving the websocket endpoint at /ws and
// a health probe at /health. Exposed separately so tests can mount it on
// httptest servers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", s.serveWs)
	return mux
}

// Run starts the hub loop and the HTTP listener, and shuts both down when ctx
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.hub.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	httpServer := &http.Server{Addr: s.cfg.Addr, Handler: s.Handler()}

	g.Go(func() error {
		slog.Info("Relay listening", "addr", s.cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("relay listener failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// serveWs upgrades the connection, assigns the member identity and starts the
// read and write pumps.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Failed to upgrade connection", "error", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		ID:   uuid.New().String(),
		send: make(chan []byte, sendQueueSize),
	}

	s.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}
