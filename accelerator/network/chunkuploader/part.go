package chunkuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxErrorBodySize = 1024

// uploadPart fetches a presigned URL for the chunk and PUTs the chunk bytes to it.
// Progress advances only after the part was accepted.
func (u *Uploader) uploadPart(ctx context.Context, session UploadSession, chunk Chunk, progress Progress) (PartResult, error) {
	if err := ctx.Err(); err != nil {
		return PartResult{}, &PartUploadError{PartNumber: chunk.PartNumber, Err: err}
	}

	start := time.Now()

	url, err := u.client.PartUploadURL(ctx, session, chunk.PartNumber)
	if err != nil {
		return PartResult{}, &PartUploadError{PartNumber: chunk.PartNumber, Err: fmt.Errorf("get presigned url: %w", err)}
	}

	etag, err := u.putPart(ctx, url, chunk)
	if err != nil {
		return PartResult{}, err
	}

	size := int64(len(chunk.Data))
	progress.Advance(size)

	took := time.Since(start)
	u.stats.record(took, size)
	u.logger.Debugf("Part %d uploaded in %v, ETag: %s [parts=%d] [avg=%v]",
		chunk.PartNumber, took.Round(time.Millisecond), etag,
		u.stats.Parts(), u.stats.AveragePart().Round(time.Millisecond))

	return PartResult{PartNumber: chunk.PartNumber, ETag: etag}, nil
}

func (u *Uploader) putPart(ctx context.Context, url string, chunk Chunk) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(chunk.Data))
	if err != nil {
		return "", &PartUploadError{PartNumber: chunk.PartNumber, Err: fmt.Errorf("create request: %w", err)}
	}
	// Presigned URLs don't accept chunked transfer encoding
	req.ContentLength = int64(len(chunk.Data))

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", &PartUploadError{PartNumber: chunk.PartNumber, Err: fmt.Errorf("do request: %w", err)}
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			u.logger.Warnf("close part %d response: %s", chunk.PartNumber, err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", &PartUploadError{
			PartNumber: chunk.PartNumber,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        fmt.Errorf("unexpected status code %d", resp.StatusCode),
		}
	}

	etag := strings.ReplaceAll(resp.Header.Get("ETag"), `"`, "")
	if etag == "" {
		return "", &PartUploadError{PartNumber: chunk.PartNumber, Err: fmt.Errorf("no ETag in response")}
	}

	return etag, nil
}
