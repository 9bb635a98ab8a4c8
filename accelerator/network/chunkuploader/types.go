// Package chunkuploader uploads a byte stream as a multipart object: it cuts the stream into
// fixed-size chunks, opens an upload session on the first chunk, uploads chunks in parallel to
// presigned URLs and finalizes the session exactly once.
package chunkuploader

import (
	"context"
	"encoding/json"
	"fmt"
)

// UploadSession identifies one server-side multipart upload.
// It is created once per upload and never modified afterwards.
type UploadSession struct {
	ProjectSlug       string
	AppBucketID       string
	UploadID          string
	UniqifiedFilename string
}

// Chunk is a slice of the source stream. PartNumber starts at 1.
type Chunk struct {
	PartNumber int
	Data       []byte
	IsLast     bool
}

// PartResult is the outcome of one successful part upload.
type PartResult struct {
	PartNumber int
	ETag       string
}

// MarshalJSON encodes the result as a [part_number, etag] pair, the shape the completion
// endpoint expects.
func (r PartResult) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{r.PartNumber, r.ETag})
}

// UnmarshalJSON decodes a [part_number, etag] pair.
func (r *PartResult) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("part result: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &r.PartNumber); err != nil {
		return fmt.Errorf("part result number: %w", err)
	}
	if err := json.Unmarshal(pair[1], &r.ETag); err != nil {
		return fmt.Errorf("part result etag: %w", err)
	}
	return nil
}

// SessionClient is the remote side of a multipart upload.
type SessionClient interface {
	// CreateSession allocates a new upload session and a unique object name.
	CreateSession(ctx context.Context, projectSlug, filename string) (UploadSession, error)

	// PartUploadURL returns a single-use URL for uploading the given part with a PUT request.
	PartUploadURL(ctx context.Context, session UploadSession, partNumber int) (string, error)

	// Complete stitches the parts together. Parts must be sorted by part number.
	Complete(ctx context.Context, session UploadSession, parts []PartResult) (json.RawMessage, error)

	// Abort discards the session and every part uploaded so far.
	Abort(ctx context.Context, session UploadSession) error
}

// Progress receives the number of bytes uploaded since the last call.
// Implementations must be safe for concurrent use.
type Progress interface {
	Advance(bytes int64)
}

// ProgressFunc adapts a function to the Progress interface.
type ProgressFunc func(bytes int64)

// Advance ...
func (f ProgressFunc) Advance(bytes int64) {
	f(bytes)
}

type noopProgress struct{}

func (noopProgress) Advance(int64) {}
