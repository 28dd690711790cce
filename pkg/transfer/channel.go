package transfer

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// DataChannel is the ordered, reliable data-bearing sub-channel of a peer
// link that a transfer session rides on. The pion adapter in pkg/peer
// implements it for real links; tests use in-memory fakes.
type DataChannel interface {
	Label() string
	StreamID() uint16
	Send(data []byte) error
	BufferedAmount() uint64
	SetBufferedAmountLowThreshold(th uint64)
	OnBufferedAmountLow(f func())
	OnOpen(f func())
	OnMessage(f func(data []byte))
	Close() error
}

// BufferedChannel wraps an inbound DataChannel so that no chunk is ever
// dropped between the channel being announced and its session being set up.
// The underlying transport delivers to whatever handler is registered at the
// time and discards the rest, so the wrapper claims the handler slot
// immediately and queues chunks until OnMessage installs the real one.
type BufferedChannel struct {
	DataChannel

	mu      sync.Mutex
	handler func(data []byte)
	queue   [][]byte
}

// NewBufferedChannel wraps dc and starts queueing right away. It must be
// called synchronously from the transport's channel-announcement callback,
// before any chunk can be delivered.
func NewBufferedChannel(dc DataChannel) *BufferedChannel {
	b := &BufferedChannel{DataChannel: dc}
	dc.OnMessage(func(data []byte) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.handler == nil {
			b.queue = append(b.queue, data)
			return
		}
		b.handler(data)
	})
	return b
}

// OnMessage installs the real handler, first replaying queued chunks to it
// in arrival order. The lock is held across the replay so a chunk landing
// mid-replay cannot overtake the queue.
func (b *BufferedChannel) OnMessage(f func(data []byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, data := range b.queue {
		f(data)
	}
	b.queue = nil
	b.handler = f
}

// ByteSource reads slices of the outbound file. The sender never holds the
// whole file in memory; it reads one chunk-sized slice at a time.
type ByteSource interface {
	// ReadSlice returns up to n bytes starting at offset. Short reads are
	// only valid at the end of the source.
	ReadSlice(offset int64, n int) ([]byte, error)
	Size() int64
}

// FileSource is a ByteSource backed by a file on disk.
type FileSource struct {
	file *os.File
	size int64
}

func NewFileSource(path string) (*FileSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &FileSource{file: file, size: info.Size()}, nil
}

func (f *FileSource) ReadSlice(offset int64, n int) ([]byte, error) {
	if remaining := f.size - offset; int64(n) > remaining {
		n = int(remaining)
	}
	buf := make([]byte, n)
	if _, err := f.file.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read slice at %d: %w", offset, err)
	}
	return buf, nil
}

func (f *FileSource) Size() int64 { return f.size }

func (f *FileSource) Close() error { return f.file.Close() }

// BytesSource is an in-memory ByteSource.
type BytesSource struct {
	data []byte
}

func NewBytesSource(data []byte) *BytesSource {
	return &BytesSource{data: data}
}

func (b *BytesSource) ReadSlice(offset int64, n int) ([]byte, error) {
	if offset < 0 || offset > int64(len(b.data)) {
		return nil, fmt.Errorf("offset %d out of range", offset)
	}
	end := offset + int64(n)
	if end > int64(len(b.data)) {
		end = int64(len(b.data))
	}
	return b.data[offset:end], nil
}

func (b *BytesSource) Size() int64 { return int64(len(b.data)) }
