package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appevents "github.com/rescp17/roomShare/internal/app_events"
	"github.com/rescp17/roomShare/internal/app_events/member"
	"github.com/rescp17/roomShare/pkg/peer"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{DisplayName: "alice", Room: "movies", OutDir: "downloads"}
	assert.NoError(t, valid.Validate())

	for name, cfg := range map[string]Config{
		"missing name": {Room: "movies", OutDir: "downloads"},
		"missing room": {DisplayName: "alice", OutDir: "downloads"},
		"missing out":  {DisplayName: "alice", Room: "movies"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestUniquePathAddsSuffixOnCollision(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")

	assert.Equal(t, path, uniquePath(path), "free name is used as-is")

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	first := uniquePath(path)
	assert.Equal(t, filepath.Join(dir, "report (1).pdf"), first)

	require.NoError(t, os.WriteFile(first, []byte("x"), 0o644))
	assert.Equal(t, filepath.Join(dir, "report (2).pdf"), uniquePath(path))
}

func TestStartSendFingerprintsAndHandsOff(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	app := NewApp(Config{DisplayName: "alice", Room: "movies", OutDir: dir}, nil)
	engine := peer.NewEngine("self-id", "alice", nil, nil, nil, nil, peer.DefaultEngineConfig())

	app.startSend(engine, member.SendFileMsg{Path: path})

	select {
	case msg := <-app.uiMessages:
		status, ok := msg.(member.StatusUpdateMsg)
		require.True(t, ok, "expected a status update, got %#v", msg)
		assert.Contains(t, status.Message, "hello.txt")
	default:
		t.Fatal("no status update emitted")
	}
}

func TestStartSendReportsMissingFile(t *testing.T) {
	app := NewApp(Config{DisplayName: "alice", Room: "movies", OutDir: t.TempDir()}, nil)
	engine := peer.NewEngine("self-id", "alice", nil, nil, nil, nil, peer.DefaultEngineConfig())

	app.startSend(engine, member.SendFileMsg{Path: filepath.Join(t.TempDir(), "ghost.bin")})

	select {
	case msg := <-app.uiMessages:
		_, ok := msg.(appevents.Error)
		assert.True(t, ok, "expected an error, got %#v", msg)
	default:
		t.Fatal("no message emitted")
	}
}

func TestSaveDownloadWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	app := NewApp(Config{DisplayName: "alice", Room: "movies", OutDir: dir}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Drain status updates emitted while saving.
		for range app.uiMessages {
		}
	}()

	app.saveDownload(member.DownloadCompleteMsg{
		Key:      "bob#1",
		FileName: "hello.txt",
		Sender:   "bob",
		Data:     []byte("hello"),
	})
	close(app.uiMessages)
	<-done

	data, err := os.ReadFile(filepath.Join(dir, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}
