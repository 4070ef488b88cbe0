package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrObjectNotFound is returned by StatObject when the object does not exist.
var ErrObjectNotFound = errors.New("gcs object not found")

// ObjectAttrs is the subset of object metadata the service reads.
type ObjectAttrs struct {
	Bucket      string
	Name        string
	ContentType string
	Size        int64
	Updated     time.Time
}

// UploadObject writes data in a single media upload. An existing object under the same name is replaced.
func (c *Client) UploadObject(ctx context.Context, bucket, object, contentType string, data []byte) (*ObjectAttrs, error) {
	bucket = c.bucketOrDefault(bucket)
	if bucket == "" || object == "" {
		return nil, errors.New("bucket and object are required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	q := url.Values{}
	q.Set("uploadType", "media")
	q.Set("name", object)
	u := fmt.Sprintf("%s/upload/storage/v1/b/%s/o?%s", c.base(), url.PathEscape(bucket), q.Encode())

	resp, err := c.do(ctx, http.MethodPost, u, bytes.NewReader(data), contentType)
	if err != nil {
		return nil, fmt.Errorf("gcs upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("gcs upload", resp)
	}
	return decodeAttrs(resp)
}

// StatObject fetches object metadata, returning ErrObjectNotFound for a 404.
func (c *Client) StatObject(ctx context.Context, bucket, object string) (*ObjectAttrs, error) {
	bucket = c.bucketOrDefault(bucket)
	if bucket == "" || object == "" {
		return nil, errors.New("bucket and object are required")
	}
	u := fmt.Sprintf("%s/storage/v1/b/%s/o/%s", c.base(), url.PathEscape(bucket), url.PathEscape(object))

	resp, err := c.do(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		return nil, fmt.Errorf("gcs stat: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return decodeAttrs(resp)
	case http.StatusNotFound:
		return nil, ErrObjectNotFound
	default:
		return nil, statusError("gcs stat", resp)
	}
}

// DeleteObject removes an object. A missing object counts as deleted.
func (c *Client) DeleteObject(ctx context.Context, bucket, object string) error {
	bucket = c.bucketOrDefault(bucket)
	if bucket == "" || object == "" {
		return errors.New("bucket and object are required")
	}
	u := fmt.Sprintf("%s/storage/v1/b/%s/o/%s", c.base(), url.PathEscape(bucket), url.PathEscape(object))

	resp, err := c.do(ctx, http.MethodDelete, u, nil, "")
	if err != nil {
		return fmt.Errorf("gcs delete: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return statusError("gcs delete", resp)
	}
}

func decodeAttrs(resp *http.Response) (*ObjectAttrs, error) {
	var raw struct {
		Bucket      string    `json:"bucket"`
		Name        string    `json:"name"`
		ContentType string    `json:"contentType"`
		Size        string    `json:"size"`
		Updated     time.Time `json:"updated"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode object metadata: %w", err)
	}
	size, _ := strconv.ParseInt(raw.Size, 10, 64)
	return &ObjectAttrs{
		Bucket:      raw.Bucket,
		Name:        raw.Name,
		ContentType: raw.ContentType,
		Size:        size,
		Updated:     raw.Updated,
	}, nil
}
