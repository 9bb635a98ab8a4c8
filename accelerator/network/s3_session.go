package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/iiasa/accli-go/accelerator/network/chunkuploader"
)

const defaultPresignExpiry = 15 * time.Minute

// S3SessionParams configures an S3Session. Credentials come from the default AWS chain
// (environment, shared config, instance role).
type S3SessionParams struct {
	Region string
	Bucket string
	// Endpoint overrides the S3 endpoint, for S3 compatible storages. Path style addressing is
	// used when set.
	Endpoint string
	// PresignExpiry is the validity of part upload URLs. Default: 15 minutes
	PresignExpiry time.Duration
}

// S3Session serves upload sessions straight from an S3 bucket, without the Accelerator API.
// Objects are stored under <project>/<filename>.
type S3Session struct {
	client        *s3.Client
	presigner     *s3.PresignClient
	bucket        string
	presignExpiry time.Duration
	logger        log.Logger
}

var _ chunkuploader.SessionClient = (*S3Session)(nil)

type s3CompletedObject struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Location string `json:"location,omitempty"`
	ETag     string `json:"etag,omitempty"`
}

// NewS3Session loads the AWS configuration and creates an S3Session for the bucket.
func NewS3Session(ctx context.Context, params S3SessionParams, logger log.Logger) (*S3Session, error) {
	if params.Bucket == "" {
		return nil, fmt.Errorf("bucket must not be empty")
	}
	if params.Region == "" {
		return nil, fmt.Errorf("region must not be empty")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(params.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	logger.Debugf("S3 session for bucket %s in %s", params.Bucket, params.Region)

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if params.Endpoint != "" {
			o.BaseEndpoint = aws.String(params.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3SessionFromClient(client, params.Bucket, params.PresignExpiry, logger), nil
}

// NewS3SessionFromClient creates an S3Session using an already configured client.
func NewS3SessionFromClient(client *s3.Client, bucket string, presignExpiry time.Duration, logger log.Logger) *S3Session {
	if presignExpiry <= 0 {
		presignExpiry = defaultPresignExpiry
	}

	return &S3Session{
		client:        client,
		presigner:     s3.NewPresignClient(client),
		bucket:        bucket,
		presignExpiry: presignExpiry,
		logger:        logger,
	}
}

// Stat returns the size of the stored object, or ErrFileNotFound.
func (s *S3Session) Stat(ctx context.Context, projectSlug, filename string) (FileStat, error) {
	key := objectKey(projectSlug, filename)

	resp, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiError smithy.APIError
		if errors.As(err, &apiError) {
			switch apiError.(type) {
			case *types.NotFound, *types.NoSuchKey:
				return FileStat{}, ErrFileNotFound
			}
		}
		return FileStat{}, fmt.Errorf("head object %s: %w", key, err)
	}

	stat := FileStat{Size: aws.ToInt64(resp.ContentLength)}
	stat.Raw, err = json.Marshal(map[string]interface{}{
		"size":     stat.Size,
		"filename": filename,
		"etag":     aws.ToString(resp.ETag),
	})
	if err != nil {
		return FileStat{}, err
	}

	return stat, nil
}

// CreateSession starts a multipart upload of <project>/<filename>.
func (s *S3Session) CreateSession(ctx context.Context, projectSlug, filename string) (chunkuploader.UploadSession, error) {
	key := objectKey(projectSlug, filename)

	resp, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return chunkuploader.UploadSession{}, fmt.Errorf("create multipart upload: %w", err)
	}

	return chunkuploader.UploadSession{
		ProjectSlug:       projectSlug,
		AppBucketID:       s.bucket,
		UploadID:          aws.ToString(resp.UploadId),
		UniqifiedFilename: key,
	}, nil
}

// PartUploadURL presigns an UploadPart request for the part.
func (s *S3Session) PartUploadURL(ctx context.Context, session chunkuploader.UploadSession, partNumber int) (string, error) {
	req, err := s.presigner.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(session.AppBucketID),
		Key:        aws.String(session.UniqifiedFilename),
		UploadId:   aws.String(session.UploadID),
		PartNumber: aws.Int32(int32(partNumber)),
	}, s3.WithPresignExpires(s.presignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign part %d: %w", partNumber, err)
	}

	return req.URL, nil
}

// Complete finalizes the multipart upload and returns the object location as JSON.
func (s *S3Session) Complete(ctx context.Context, session chunkuploader.UploadSession, parts []chunkuploader.PartResult) (json.RawMessage, error) {
	completedParts := make([]types.CompletedPart, 0, len(parts))
	for _, part := range parts {
		completedParts = append(completedParts, types.CompletedPart{
			PartNumber: aws.Int32(int32(part.PartNumber)),
			ETag:       aws.String(part.ETag),
		})
	}

	resp, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(session.AppBucketID),
		Key:             aws.String(session.UniqifiedFilename),
		UploadId:        aws.String(session.UploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completedParts},
	})
	if err != nil {
		return nil, fmt.Errorf("complete multipart upload: %w", err)
	}

	return json.Marshal(s3CompletedObject{
		Bucket:   session.AppBucketID,
		Key:      session.UniqifiedFilename,
		Location: aws.ToString(resp.Location),
		ETag:     aws.ToString(resp.ETag),
	})
}

// Abort aborts the multipart upload.
func (s *S3Session) Abort(ctx context.Context, session chunkuploader.UploadSession) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(session.AppBucketID),
		Key:      aws.String(session.UniqifiedFilename),
		UploadId: aws.String(session.UploadID),
	})
	if err != nil {
		return fmt.Errorf("abort multipart upload: %w", err)
	}
	return nil
}

func objectKey(projectSlug, filename string) string {
	return path.Join(projectSlug, filename)
}
