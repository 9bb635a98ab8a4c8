package chunkuploader

import "fmt"

// StreamReadError is returned when the source stream fails with anything but end of stream.
type StreamReadError struct {
	PartNumber int
	Err        error
}

func (e *StreamReadError) Error() string {
	return fmt.Sprintf("read part %d: %s", e.PartNumber, e.Err)
}

func (e *StreamReadError) Unwrap() error {
	return e.Err
}

// PartUploadError is returned when a single part could not be uploaded.
// StatusCode and Body are set when the presigned URL answered with a non-2xx status.
type PartUploadError struct {
	PartNumber int
	StatusCode int
	Body       string
	Err        error
}

func (e *PartUploadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upload part %d: HTTP %d: %s", e.PartNumber, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("upload part %d: %s", e.PartNumber, e.Err)
}

func (e *PartUploadError) Unwrap() error {
	return e.Err
}
