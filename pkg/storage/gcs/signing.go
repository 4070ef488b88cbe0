package gcs

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const signedHost = "https://storage.googleapis.com"

// SignOptions tunes a V2 signed URL.
type SignOptions struct {
	Method      string
	ContentType string
	Expires     time.Time
	// ResponseDisposition is echoed back by GCS as the Content-Disposition header.
	ResponseDisposition string
}

// SignURL builds a V2 signed url. The string to sign is
// METHOD\n\nCONTENT_TYPE\nEXPIRES\n/bucket/object.
func (c *Client) SignURL(bucket, object string, opts SignOptions) (string, error) {
	if c == nil || c.signer == nil || c.signer.key == nil {
		return "", errors.New("signing requires service account credentials")
	}
	bucket = c.bucketOrDefault(bucket)
	if bucket == "" {
		return "", errors.New("bucket is required")
	}
	if object == "" {
		return "", errors.New("object is required")
	}
	if opts.Expires.IsZero() {
		return "", errors.New("expiry is required")
	}
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = "GET"
	}

	expires := strconv.FormatInt(opts.Expires.Unix(), 10)
	resource := "/" + bucket + "/" + escapeObject(object)
	payload := strings.Join([]string{method, "", opts.ContentType, expires, resource}, "\n")

	sig, err := c.signer.sign([]byte(payload))
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}

	q := url.Values{}
	q.Set("GoogleAccessId", c.signer.email)
	q.Set("Expires", expires)
	q.Set("Signature", base64.StdEncoding.EncodeToString(sig))
	if opts.ResponseDisposition != "" {
		q.Set("response-content-disposition", opts.ResponseDisposition)
	}
	return signedHost + resource + "?" + q.Encode(), nil
}

// ParseObjectURL maps a signed url, a gs:// url or a bare object path back to bucket and object.
// Bare paths resolve against the default bucket.
func (c *Client) ParseObjectURL(raw string) (bucket, object string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", errors.New("empty object url")
	}
	if strings.HasPrefix(raw, "gs://") {
		rest := strings.TrimPrefix(raw, "gs://")
		bucket, object, _ = strings.Cut(rest, "/")
	} else if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, perr := url.Parse(raw)
		if perr != nil {
			return "", "", fmt.Errorf("parse object url: %w", perr)
		}
		path := strings.TrimPrefix(u.EscapedPath(), "/")
		if host := strings.ToLower(u.Host); strings.HasSuffix(host, ".storage.googleapis.com") {
			bucket = strings.TrimSuffix(host, ".storage.googleapis.com")
			object = path
		} else {
			bucket, object, _ = strings.Cut(path, "/")
		}
		if object, perr = url.PathUnescape(object); perr != nil {
			return "", "", fmt.Errorf("unescape object: %w", perr)
		}
	} else {
		bucket, object = c.DefaultBucket(), strings.TrimPrefix(raw, "/")
	}
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("cannot resolve bucket/object from %q", raw)
	}
	return bucket, object, nil
}

func escapeObject(object string) string {
	parts := strings.Split(object, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
