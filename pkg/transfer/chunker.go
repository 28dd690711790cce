package transfer

import (
	"io"
)

// ChunkSize is the fixed outbound chunk size. The last chunk of a file may
// be shorter. 16 KiB stays below the SCTP message limits every data channel
// implementation handles without fragmentation surprises.
const ChunkSize = 16384

// Chunker walks a ByteSource in ChunkSize steps, strictly in order.
type Chunker struct {
	src    ByteSource
	offset int64
}

func NewChunker(src ByteSource) *Chunker {
	return &Chunker{src: src}
}

// Next returns the next chunk, or io.EOF after the final chunk has been
// returned. A zero-length source yields io.EOF immediately.
func (c *Chunker) Next() ([]byte, error) {
	if c.offset >= c.src.Size() {
		return nil, io.EOF
	}
	chunk, err := c.src.ReadSlice(c.offset, ChunkSize)
	if err != nil {
		return nil, err
	}
	c.offset += int64(len(chunk))
	return chunk, nil
}

// Offset reports how many bytes have been handed out so far.
func (c *Chunker) Offset() int64 { return c.offset }
