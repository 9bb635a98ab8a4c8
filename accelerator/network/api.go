package network

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/iiasa/accli-go/accelerator/network/chunkuploader"
)

const authorizationHeader = "x-authorization"

type fileStatRequest struct {
	Filename string `json:"filename"`
}

type createSessionResponse struct {
	UploadID          flexString `json:"upload_id"`
	AppBucketID       flexString `json:"app_bucket_id"`
	UniqifiedFilename string     `json:"uniqified_filename"`
}

type completeRequest struct {
	AppBucketID string `json:"app_bucket_id"`
	Filename    string `json:"filename"`
	UploadID    string `json:"upload_id"`
	Parts       string `json:"parts"`
}

type abortRequest struct {
	AppBucketID string `json:"app_bucket_id"`
	Filename    string `json:"filename"`
	UploadID    string `json:"upload_id"`
}

// FileStat is the metadata of a file already stored in a project.
type FileStat struct {
	Size int64 `json:"size"`
	// Raw is the complete metadata document.
	Raw json.RawMessage `json:"-"`
}

// APIClient talks to the Accelerator terminal CLI API. It implements chunkuploader.SessionClient.
type APIClient struct {
	httpClient  *retryablehttp.Client
	baseURL     string
	accessToken string
	logger      log.Logger
}

var _ chunkuploader.SessionClient = (*APIClient)(nil)

// NewAPIClient creates a client for the API under baseURL (for example https://host/v1/aterm-cli).
func NewAPIClient(client *retryablehttp.Client, baseURL string, accessToken string, logger log.Logger) *APIClient {
	return &APIClient{
		httpClient:  client,
		baseURL:     baseURL,
		accessToken: accessToken,
		logger:      logger,
	}
}

// NewDefaultHTTPClient creates the retryable HTTP client used for API calls.
// Failed calls are not retried unless maxRetries is positive.
func NewDefaultHTTPClient(maxRetries int, insecure bool, logger log.Logger) *retryablehttp.Client {
	client := retryhttp.NewClient(logger)
	client.RetryMax = maxRetries
	// Keep the response of failed calls so the status code and body reach APIError
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if insecure {
		if transport, ok := client.HTTPClient.Transport.(*http.Transport); ok {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		}
	}

	return client
}

// Stat returns the metadata of filename in the project, or ErrFileNotFound.
func (c *APIClient) Stat(ctx context.Context, projectSlug, filename string) (FileStat, error) {
	body, err := json.Marshal(fileStatRequest{Filename: filename})
	if err != nil {
		return FileStat{}, err
	}

	var raw json.RawMessage
	err = c.call(ctx, http.MethodPost, c.projectURL(projectSlug, "file-stat/"), body, &raw)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return FileStat{}, ErrFileNotFound
		}
		return FileStat{}, err
	}

	var stat FileStat
	if err := json.Unmarshal(raw, &stat); err != nil {
		return FileStat{}, fmt.Errorf("decode file stat: %w", err)
	}
	stat.Raw = raw

	return stat, nil
}

// CreateSession starts a multipart upload of filename. Every call allocates a new session.
func (c *APIClient) CreateSession(ctx context.Context, projectSlug, filename string) (chunkuploader.UploadSession, error) {
	encodedFilename := base64.StdEncoding.EncodeToString([]byte(filename))

	var response createSessionResponse
	err := c.call(ctx, http.MethodGet, c.projectURL(projectSlug, "create-multipart-upload-id/"+encodedFilename), nil, &response)
	if err != nil {
		return chunkuploader.UploadSession{}, err
	}

	return chunkuploader.UploadSession{
		ProjectSlug:       projectSlug,
		AppBucketID:       string(response.AppBucketID),
		UploadID:          string(response.UploadID),
		UniqifiedFilename: response.UniqifiedFilename,
	}, nil
}

// PartUploadURL returns the presigned URL for one part of the session.
func (c *APIClient) PartUploadURL(ctx context.Context, session chunkuploader.UploadSession, partNumber int) (string, error) {
	query := url.Values{}
	query.Set("app_bucket_id", session.AppBucketID)
	query.Set("object_name", session.UniqifiedFilename)
	query.Set("upload_id", session.UploadID)
	query.Set("part_number", strconv.Itoa(partNumber))

	var presignedURL string
	err := c.call(ctx, http.MethodGet, c.projectURL(session.ProjectSlug, "put-multipart-signed-url")+"?"+query.Encode(), nil, &presignedURL)
	if err != nil {
		return "", err
	}

	return presignedURL, nil
}

// Complete finalizes the session. The parts are sent as base64 encoded JSON list of
// [part_number, etag] pairs.
func (c *APIClient) Complete(ctx context.Context, session chunkuploader.UploadSession, parts []chunkuploader.PartResult) (json.RawMessage, error) {
	encodedParts, err := json.Marshal(parts)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(completeRequest{
		AppBucketID: session.AppBucketID,
		Filename:    session.UniqifiedFilename,
		UploadID:    session.UploadID,
		Parts:       base64.StdEncoding.EncodeToString(encodedParts),
	})
	if err != nil {
		return nil, err
	}

	var object json.RawMessage
	err = c.call(ctx, http.MethodPut, c.projectURL(session.ProjectSlug, "complete-create-multipart-upload"), body, &object)
	if err != nil {
		return nil, err
	}

	return object, nil
}

// Abort discards the session.
func (c *APIClient) Abort(ctx context.Context, session chunkuploader.UploadSession) error {
	body, err := json.Marshal(abortRequest{
		AppBucketID: session.AppBucketID,
		Filename:    session.UniqifiedFilename,
		UploadID:    session.UploadID,
	})
	if err != nil {
		return err
	}

	return c.call(ctx, http.MethodPut, c.projectURL(session.ProjectSlug, "abort-create-multipart-upload"), body, nil)
}

func (c *APIClient) projectURL(projectSlug, path string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, projectSlug, path)
}

// call sends an authorized request and decodes the JSON response into out, unless out is nil.
func (c *APIClient) call(ctx context.Context, method, target string, body []byte, out interface{}) error {
	var rawBody interface{}
	if body != nil {
		rawBody = body
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, rawBody)
	if err != nil {
		return err
	}
	req.Header.Set(authorizationHeader, c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debugf("%s %s", method, target)

	// The retry policy reports an error next to 5xx responses, the response wins.
	resp, err := c.httpClient.Do(req)
	if resp == nil {
		return &TransportError{Method: method, URL: target, Err: err}
	}
	defer c.closeBody(resp.Body)

	if isErrorStatus(resp.StatusCode) {
		return unwrapError(resp)
	}
	if err != nil {
		return &TransportError{Method: method, URL: target, Err: err}
	}

	if out == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Method: method, URL: target, Err: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", target, err)
	}

	return nil
}

func (c *APIClient) closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		c.logger.Printf(err.Error())
	}
}

// flexString accepts both JSON strings and numbers; the API is not consistent about
// identifiers.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}

	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*s = flexString(number.String())
	return nil
}
