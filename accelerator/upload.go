// Package accelerator uploads files and folders to Accelerator projects.
package accelerator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/iiasa/accli-go/accelerator/network"
	"github.com/iiasa/accli-go/accelerator/network/chunkuploader"
)

// Session is a SessionClient that can also look up already stored files.
type Session interface {
	chunkuploader.SessionClient
	Stat(ctx context.Context, projectSlug, filename string) (network.FileStat, error)
}

// Uploader ...
type Uploader struct {
	session     Session
	coordinator *chunkuploader.Uploader
	logger      log.Logger
}

// NewUploader ...
func NewUploader(config chunkuploader.Config, session Session, logger log.Logger) *Uploader {
	return &Uploader{
		session:     session,
		coordinator: chunkuploader.New(config, session, logger),
		logger:      logger,
	}
}

// NewAPIUploader creates an Uploader talking to the Accelerator API described by config.
func NewAPIUploader(config Config, logger log.Logger) (*Uploader, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("%s is not set", tokenEnvKey)
	}

	httpClient := network.NewDefaultHTTPClient(0, config.InsecureSkipVerify, logger)
	client := network.NewAPIClient(httpClient, config.APIBaseURL(), string(config.Token), logger)

	return NewUploader(config.UploaderConfig(), client, logger), nil
}

// UploadFile uploads the local file as remotePath. When the project already holds remotePath,
// nothing is uploaded: progress advances by the stored size and the stored metadata is returned.
func (u *Uploader) UploadFile(ctx context.Context, projectSlug, localPath, remotePath string, progress chunkuploader.Progress) (json.RawMessage, error) {
	if progress == nil {
		progress = chunkuploader.ProgressFunc(func(int64) {})
	}

	stat, err := u.session.Stat(ctx, projectSlug, remotePath)
	switch {
	case err == nil:
		u.logger.Debugf("%s already exists (%d bytes), skipping", remotePath, stat.Size)
		progress.Advance(stat.Size)
		return stat.Raw, nil
	case !errors.Is(err, network.ErrFileNotFound):
		return nil, fmt.Errorf("stat %s: %w", remotePath, err)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			u.logger.Warnf("Failed to close %s: %s", localPath, err)
		}
	}()

	object, err := u.coordinator.Upload(ctx, projectSlug, remotePath, file, progress)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", remotePath, err)
	}

	u.logger.Debugf("Uploaded %s", remotePath)

	return object, nil
}

// Stats returns the part upload statistics collected so far.
func (u *Uploader) Stats() *chunkuploader.Stats {
	return u.coordinator.Stats()
}

// Close releases idle connections of the part upload client.
func (u *Uploader) Close() {
	u.coordinator.CloseIdleConnections()
}
