package chunkuploader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type fakeSessionClient struct {
	baseURL string

	createErr   error
	urlErr      map[int]error
	completeErr error
	abortErr    error

	mu            sync.Mutex
	createCalls   int
	urlCalls      []int
	completeCalls [][]PartResult
	abortCalls    []UploadSession
}

var fakeSession = UploadSession{
	ProjectSlug:       "my-project",
	AppBucketID:       "bucket-1",
	UploadID:          "upload-1",
	UniqifiedFilename: "folder/file-abc123.bin",
}

func (c *fakeSessionClient) CreateSession(_ context.Context, projectSlug, _ string) (UploadSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.createCalls++
	if c.createErr != nil {
		return UploadSession{}, c.createErr
	}
	session := fakeSession
	session.ProjectSlug = projectSlug
	return session, nil
}

func (c *fakeSessionClient) PartUploadURL(_ context.Context, session UploadSession, partNumber int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.urlCalls = append(c.urlCalls, partNumber)
	if err := c.urlErr[partNumber]; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/part/%d?upload_id=%s", c.baseURL, partNumber, session.UploadID), nil
}

func (c *fakeSessionClient) Complete(_ context.Context, _ UploadSession, parts []PartResult) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.completeCalls = append(c.completeCalls, append([]PartResult(nil), parts...))
	if c.completeErr != nil {
		return nil, c.completeErr
	}
	return json.RawMessage(`{"id":42}`), nil
}

func (c *fakeSessionClient) Abort(_ context.Context, session UploadSession) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.abortCalls = append(c.abortCalls, session)
	return c.abortErr
}

// partServer stands in for the storage behind presigned URLs.
type partServer struct {
	*httptest.Server

	// fail returns a non-zero status code to reject the part.
	fail func(partNumber int) int
	// before runs ahead of handling each part.
	before func(partNumber int)

	hits  int32
	mu    sync.Mutex
	parts map[int][]byte
}

func newPartServer(t *testing.T) *partServer {
	s := &partServer{parts: map[int][]byte{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.hits, 1)

		if r.Method != http.MethodPut {
			t.Errorf("unexpected method: %s", r.Method)
		}
		partNumber, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/part/"))
		if err != nil {
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if s.before != nil {
			s.before(partNumber)
		}
		if s.fail != nil {
			if status := s.fail(partNumber); status != 0 {
				w.WriteHeader(status)
				_, _ = w.Write([]byte("part rejected"))
				return
			}
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %s", err)
		}
		if r.ContentLength != int64(len(body)) {
			t.Errorf("part %d: content length %d, body %d", partNumber, r.ContentLength, len(body))
		}

		s.mu.Lock()
		s.parts[partNumber] = body
		s.mu.Unlock()

		w.Header().Set("ETag", fmt.Sprintf("\"etag-%d\"", partNumber))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *partServer) hitCount() int {
	return int(atomic.LoadInt32(&s.hits))
}

type countingProgress struct {
	total int64
}

func (p *countingProgress) Advance(bytes int64) {
	atomic.AddInt64(&p.total, bytes)
}

func (p *countingProgress) Total() int64 {
	return atomic.LoadInt64(&p.total)
}
