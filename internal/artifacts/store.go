package artifacts

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/printshop-backend/pkg/logger"
	"github.com/angelmondragon/printshop-backend/pkg/storage/gcs"
)

const pdfContentType = "application/pdf"

// LinkTTL is the lifetime of every download link. It is fixed, not configured.
const LinkTTL = 6 * time.Hour

// ErrStorage wraps upload and signing failures.
var ErrStorage = stdErrors.New("artifact storage failure")

type objectClient interface {
	UploadObject(ctx context.Context, bucket, object, contentType string, data []byte) (*gcs.ObjectAttrs, error)
	StatObject(ctx context.Context, bucket, object string) (*gcs.ObjectAttrs, error)
	DeleteObject(ctx context.Context, bucket, object string) error
	SignURL(bucket, object string, opts gcs.SignOptions) (string, error)
	ParseObjectURL(raw string) (bucket, object string, err error)
}

// Artifact describes a stored document and its current download link.
type Artifact struct {
	Path      string
	SignedURL string
	SignedAt  time.Time
	ExpiresAt time.Time
}

// Store keeps generated PDFs private and hands out expiring links.
type Store struct {
	client objectClient
	bucket string
	logg   *logger.Logger
	now    func() time.Time
}

func NewStore(client objectClient, bucket string, logg *logger.Logger) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("object client required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket required")
	}
	return &Store{client: client, bucket: bucket, logg: logg, now: time.Now}, nil
}

// ObjectKey is the storage path for an order document of the given kind.
func ObjectKey(orderID uuid.UUID, kind string) string {
	return fmt.Sprintf("orders/%s/%s.pdf", orderID, kind)
}

// Store uploads data under key, replacing any previous object, and signs a download link.
func (s *Store) Store(ctx context.Context, data []byte, key, filename string) (*Artifact, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrStorage)
	}
	if _, err := s.client.UploadObject(ctx, s.bucket, key, pdfContentType, data); err != nil {
		return nil, fmt.Errorf("%w: upload %s: %v", ErrStorage, key, err)
	}
	return s.sign(key, filename)
}

// Resign issues a fresh link for an existing object. It returns nil when the object is gone.
func (s *Store) Resign(ctx context.Context, path, filename string) (*Artifact, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	if _, err := s.client.StatObject(ctx, s.bucket, path); err != nil {
		if stdErrors.Is(err, gcs.ErrObjectNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: stat %s: %v", ErrStorage, path, err)
	}
	return s.sign(path, filename)
}

// Delete removes the object behind a previously issued url or path. Failures are only logged.
func (s *Store) Delete(ctx context.Context, rawURL string) {
	bucket, object, err := s.client.ParseObjectURL(rawURL)
	if err != nil {
		s.warn(ctx, "artifacts.delete_unparseable", map[string]any{"url": redact(rawURL), "error": err.Error()})
		return
	}
	if err := s.client.DeleteObject(ctx, bucket, object); err != nil {
		s.warn(ctx, "artifacts.delete_failed", map[string]any{"bucket": bucket, "object": object, "error": err.Error()})
		return
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"bucket": bucket, "object": object}), "artifacts.deleted")
	}
}

func (s *Store) sign(path, filename string) (*Artifact, error) {
	signedAt := s.now().UTC()
	expiresAt := signedAt.Add(LinkTTL)
	url, err := s.client.SignURL(s.bucket, path, gcs.SignOptions{
		Method:              "GET",
		Expires:             expiresAt,
		ResponseDisposition: Disposition(filename),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: sign %s: %v", ErrStorage, path, err)
	}
	return &Artifact{Path: path, SignedURL: url, SignedAt: signedAt, ExpiresAt: expiresAt}, nil
}

// Disposition forces a friendly attachment name with a .pdf extension.
func Disposition(filename string) string {
	name := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 || r > 0x7e {
			return '_'
		}
		return r
	}, strings.TrimSpace(filename))
	if name == "" {
		name = "document"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return fmt.Sprintf(`attachment; filename="%s"`, name)
}

func (s *Store) warn(ctx context.Context, event string, fields map[string]any) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, fields), event)
}

// redact drops the query string so signatures never reach the logs.
func redact(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}
