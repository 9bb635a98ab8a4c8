package chunkuploader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/bitrise-io/go-utils/v2/log"
)

type state int

const (
	stateInit state = iota
	stateSessionPending
	stateSessionCreated
	stateUploading
	stateAllPartsDone
	stateCompleted
	stateAborted
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateSessionPending:
		return "session-pending"
	case stateSessionCreated:
		return "session-created"
	case stateUploading:
		return "uploading"
	case stateAllPartsDone:
		return "all-parts-done"
	case stateCompleted:
		return "completed"
	case stateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Uploader coordinates multipart uploads: one sequential reader feeding a bounded pool of
// part uploads, with lazy session creation and a single complete-or-abort at the end.
type Uploader struct {
	config     Config
	client     SessionClient
	httpClient *http.Client
	logger     log.Logger
	stats      *Stats
}

// New creates a new Uploader with the given configuration.
func New(config Config, client SessionClient, logger log.Logger) *Uploader {
	config = config.withDefaults()

	return &Uploader{
		config:     config,
		client:     client,
		httpClient: config.HTTPClient,
		logger:     logger,
		stats:      NewStats(),
	}
}

// Upload reads stream to its end and stores it as filename in the given project.
// It returns the object identifier reported by the completion call.
//
// Once a session exists, any failure aborts it before the first error is returned unchanged.
// Every submitted part upload has returned by the time Upload returns.
//
// Reading waits while Concurrency parts are in flight, so at most Concurrency+1 chunks are held
// in memory.
func (u *Uploader) Upload(ctx context.Context, projectSlug, filename string, stream io.Reader, progress Progress) (json.RawMessage, error) {
	if progress == nil {
		progress = noopProgress{}
	}

	reader, err := NewChunkReader(stream, u.config.ChunkSize)
	if err != nil {
		return nil, err
	}

	run := &upload{
		Uploader:    u,
		projectSlug: projectSlug,
		filename:    filename,
		state:       stateInit,
	}
	return run.execute(ctx, reader, progress)
}

// Stats returns the part upload statistics.
func (u *Uploader) Stats() *Stats {
	return u.stats
}

// CloseIdleConnections closes idle connections in the HTTP client.
func (u *Uploader) CloseIdleConnections() {
	u.httpClient.CloseIdleConnections()
}

// upload is the state of a single Upload call.
type upload struct {
	*Uploader
	projectSlug string
	filename    string
	state       state
	session     *UploadSession
}

func (r *upload) transition(to state) {
	r.logger.Debugf("Upload %s: %s -> %s", r.filename, r.state, to)
	r.state = to
}

func (r *upload) execute(ctx context.Context, reader *ChunkReader, progress Progress) (json.RawMessage, error) {
	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var onFailure func()
	if r.config.CancelOnFailure {
		onFailure = cancel
	}
	pool := newWorkerPool(r.config.Concurrency, onFailure)

	r.transition(stateSessionPending)
	r.produce(workCtx, reader, pool, progress)

	parts, err := pool.Wait()
	if err == nil {
		r.transition(stateAllPartsDone)

		var object json.RawMessage
		object, err = r.complete(ctx, parts)
		if err == nil {
			r.transition(stateCompleted)
			return object, nil
		}
	}

	if r.session != nil {
		r.abort(ctx)
		r.transition(stateAborted)
	}

	return nil, err
}

// produce reads chunks and submits them until the last chunk or the first failure.
// Failures are recorded on the pool.
func (r *upload) produce(ctx context.Context, reader *ChunkReader, pool *workerPool, progress Progress) {
	for {
		// A failed part only stops production when it also cancelled ctx.
		if err := ctx.Err(); err != nil {
			pool.fail(err)
			return
		}

		chunk, err := reader.Next()
		if err != nil {
			pool.fail(err)
			return
		}

		if r.session == nil {
			session, err := r.client.CreateSession(ctx, r.projectSlug, r.filename)
			if err != nil {
				pool.fail(err)
				return
			}
			r.session = &session
			r.transition(stateSessionCreated)
			r.logger.Debugf("Upload session created, upload ID: %s, object: %s", session.UploadID, session.UniqifiedFilename)
		}

		session := *r.session
		err = pool.Submit(ctx, func() (PartResult, error) {
			return r.uploadPart(ctx, session, chunk, progress)
		})
		if err != nil {
			pool.fail(err)
			return
		}
		if r.state == stateSessionCreated {
			r.transition(stateUploading)
		}

		if chunk.IsLast {
			r.logger.Debugf("Last part (%d) submitted", chunk.PartNumber)
			return
		}
	}
}

func (r *upload) complete(ctx context.Context, parts []PartResult) (json.RawMessage, error) {
	sort.Slice(parts, func(i, j int) bool {
		return parts[i].PartNumber < parts[j].PartNumber
	})

	r.logger.Debugf("Completing upload %s with %d parts", r.session.UploadID, len(parts))
	return r.client.Complete(ctx, *r.session, parts)
}

// abort is best-effort: its own failure is logged and the original error is kept.
func (r *upload) abort(ctx context.Context) {
	r.logger.Warnf("Aborting upload %s of %s", r.session.UploadID, r.filename)

	if err := r.client.Abort(context.WithoutCancel(ctx), *r.session); err != nil {
		r.logger.Warnf("Failed to abort upload %s: %s", r.session.UploadID, err)
	}
}
