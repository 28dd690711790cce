package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAnnounceStopsOnCancel(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping mDNS test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter := &MDNSAdapter{}
	errCh := make(chan error, 1)
	go func() {
		errCh <- adapter.Announce(ctx, ServiceInfo{
			Name:   "test-relay",
			Type:   "_roomshare-test._tcp",
			Domain: DefaultDomain,
			Port:   8080,
		})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err, "cancellation is a clean shutdown")
	case <-time.After(5 * time.Second):
		t.Fatal("announce did not stop on cancel")
	}
}

func TestDiscoverClosesChannelOnCancel(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping mDNS test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	adapter := &MDNSAdapter{}
	results := adapter.Discover(ctx, "_roomshare-test._tcp")

	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-results:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("discover channel never closed")
		}
	}
}
