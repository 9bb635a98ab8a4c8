package chunkuploader

import (
	"errors"
	"fmt"
	"io"
)

// ChunkReader cuts a sequential stream into chunks of a fixed size without knowing the stream
// length in advance. Whether a chunk is the last one is only known after trying to read one byte
// past its end: every read asks for size+1 bytes (including the byte carried over from the
// previous read) and a short read marks the final chunk.
//
// ChunkReader is not safe for concurrent use.
type ChunkReader struct {
	r          io.Reader
	size       int64
	carry      []byte
	partNumber int
	done       bool
}

// NewChunkReader creates a ChunkReader producing chunks of size bytes.
func NewChunkReader(r io.Reader, size int64) (*ChunkReader, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	return &ChunkReader{r: r, size: size}, nil
}

// Next returns the next chunk. After the chunk with IsLast set it returns io.EOF.
// An empty stream yields a single empty chunk marked as last.
func (c *ChunkReader) Next() (Chunk, error) {
	if c.done {
		return Chunk{}, io.EOF
	}
	c.partNumber++

	buf := make([]byte, c.size+1)
	n := copy(buf, c.carry)
	c.carry = nil

	read, err := io.ReadFull(c.r, buf[n:])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		c.done = true
		return Chunk{}, &StreamReadError{PartNumber: c.partNumber, Err: err}
	}
	n += read

	if int64(n) <= c.size {
		c.done = true
		return Chunk{PartNumber: c.partNumber, Data: buf[:n], IsLast: true}, nil
	}

	c.carry = []byte{buf[c.size]}
	return Chunk{PartNumber: c.partNumber, Data: buf[:c.size]}, nil
}
