package accelerator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/iiasa/accli-go/accelerator/network"
	"github.com/iiasa/accli-go/accelerator/network/chunkuploader"
	"github.com/stretchr/testify/mock"
)

type fakeEnvRepo struct {
	envVars map[string]string
}

func (repo fakeEnvRepo) Get(key string) string {
	return repo.envVars[key]
}

func (repo fakeEnvRepo) Set(key, value string) error {
	repo.envVars[key] = value
	return nil
}

func (repo fakeEnvRepo) Unset(key string) error {
	delete(repo.envVars, key)
	return nil
}

func (repo fakeEnvRepo) List() []string {
	envs := []string{}
	for k, v := range repo.envVars {
		envs = append(envs, fmt.Sprintf("%s=%s", k, v))
	}
	return envs
}

// mockSession ...
type mockSession struct {
	mock.Mock
}

func (m *mockSession) Stat(_ context.Context, projectSlug, filename string) (network.FileStat, error) {
	args := m.Called(projectSlug, filename)
	return args.Get(0).(network.FileStat), args.Error(1)
}

func (m *mockSession) CreateSession(_ context.Context, projectSlug, filename string) (chunkuploader.UploadSession, error) {
	args := m.Called(projectSlug, filename)
	if rf, ok := args.Get(0).(func(string, string) chunkuploader.UploadSession); ok {
		return rf(projectSlug, filename), args.Error(1)
	}
	return args.Get(0).(chunkuploader.UploadSession), args.Error(1)
}

func (m *mockSession) PartUploadURL(_ context.Context, session chunkuploader.UploadSession, partNumber int) (string, error) {
	args := m.Called(session, partNumber)
	if rf, ok := args.Get(0).(func(chunkuploader.UploadSession, int) string); ok {
		return rf(session, partNumber), args.Error(1)
	}
	return args.String(0), args.Error(1)
}

func (m *mockSession) Complete(_ context.Context, session chunkuploader.UploadSession, parts []chunkuploader.PartResult) (json.RawMessage, error) {
	args := m.Called(session, parts)
	object, _ := args.Get(0).(json.RawMessage)
	return object, args.Error(1)
}

func (m *mockSession) Abort(_ context.Context, session chunkuploader.UploadSession) error {
	args := m.Called(session)
	return args.Error(0)
}

// GivenFileNotFound ...
func (m *mockSession) GivenFileNotFound() *mockSession {
	m.On("Stat", mock.Anything, mock.Anything).Return(network.FileStat{}, network.ErrFileNotFound)
	return m
}

// GivenUploadSucceeds makes every created session point its parts at the storage server.
func (m *mockSession) GivenUploadSucceeds(storage *fakeStorage) *mockSession {
	m.On("CreateSession", mock.Anything, mock.Anything).Return(
		func(projectSlug, filename string) chunkuploader.UploadSession {
			return chunkuploader.UploadSession{
				ProjectSlug:       projectSlug,
				AppBucketID:       "bucket",
				UploadID:          "upload-" + filename,
				UniqifiedFilename: filename,
			}
		},
		nil,
	)
	m.On("PartUploadURL", mock.Anything, mock.Anything).Return(
		func(session chunkuploader.UploadSession, partNumber int) string {
			return fmt.Sprintf("%s/%s/%d", storage.server.URL, session.UniqifiedFilename, partNumber)
		},
		nil,
	)
	m.On("Complete", mock.Anything, mock.Anything).Return(json.RawMessage(`{"ok": true}`), nil)
	return m
}

// fakeStorage stands in for the presigned URL endpoint and stores the received parts by path.
type fakeStorage struct {
	server *httptest.Server
	mu     sync.Mutex
	parts  map[string][]byte
}

func newFakeStorage(t *testing.T) *fakeStorage {
	t.Helper()

	storage := &fakeStorage{parts: map[string][]byte{}}
	storage.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		storage.mu.Lock()
		storage.parts[r.URL.Path] = body
		storage.mu.Unlock()

		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(storage.server.Close)

	return storage
}

func (s *fakeStorage) part(path string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parts[path]
}
