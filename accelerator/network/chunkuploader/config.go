package chunkuploader

import (
	"crypto/tls"
	"net/http"
	"runtime"
	"time"
)

// DefaultChunkSize is the size of every part except the last one.
const DefaultChunkSize int64 = 200 * 1024 * 1024

// Config holds configuration for the chunk uploader.
type Config struct {
	// Concurrency is the maximum number of parallel part uploads.
	// Default: number of CPUs
	Concurrency int

	// ChunkSize is the size of each part in bytes, the last part may be smaller.
	// Default: 200 MiB
	ChunkSize int64

	// CancelOnFailure stops reading the stream and cancels in-flight part uploads as soon as
	// one part fails. When false every submitted part runs to completion before the upload
	// is aborted.
	// Default: true
	CancelOnFailure bool

	// HTTPClient is the HTTP client used for the presigned part uploads.
	// If nil, a default optimized client will be created.
	HTTPClient *http.Client
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:     DefaultConcurrency(),
		ChunkSize:       DefaultChunkSize,
		CancelOnFailure: true,
		HTTPClient:      nil, // Will be created by Uploader
	}
}

// DefaultConcurrency is the number of usable CPUs, at least 1.
func DefaultConcurrency() int {
	c := runtime.NumCPU()
	if c < 1 {
		c = 1
	}
	return c
}

// DefaultHTTPClient returns a client for part uploads on a clone of http.DefaultTransport.
// It has no overall timeout, part uploads are bounded by their context.
// insecure disables TLS certificate verification.
func DefaultHTTPClient(insecure bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = DefaultConcurrency()
	transport.ResponseHeaderTimeout = 5 * time.Minute
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &http.Client{Transport: transport}
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency()
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.HTTPClient == nil {
		c.HTTPClient = DefaultHTTPClient(false)
	}
	return c
}
