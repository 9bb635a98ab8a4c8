package chunkuploader

import (
	"sync/atomic"
	"time"
)

// Stats counts the parts an Uploader has uploaded. It is safe for concurrent use.
type Stats struct {
	parts   atomic.Int64
	bytes   atomic.Int64
	elapsed atomic.Int64
}

// NewStats ...
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) record(took time.Duration, size int64) {
	s.parts.Add(1)
	s.bytes.Add(size)
	s.elapsed.Add(int64(took))
}

// Parts is the number of uploaded parts.
func (s *Stats) Parts() int64 {
	return s.parts.Load()
}

// Bytes is the payload of the uploaded parts.
func (s *Stats) Bytes() int64 {
	return s.bytes.Load()
}

// Elapsed is the summed upload time of the parts. Parallel parts overlap, so it can be longer
// than the wall-clock time of the upload.
func (s *Stats) Elapsed() time.Duration {
	return time.Duration(s.elapsed.Load())
}

// AveragePart is the mean upload time of a part.
func (s *Stats) AveragePart() time.Duration {
	parts := s.parts.Load()
	if parts == 0 {
		return 0
	}
	return time.Duration(s.elapsed.Load() / parts)
}
