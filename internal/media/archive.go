package media

import (
	"context"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Archive stores uploaded creatives and returns a durable reference.
type Archive interface {
	Put(ctx context.Context, key string, f *File) (string, error)
	Close() error
}

// GCSArchive keeps creatives in a Cloud Storage bucket. References are
// gs:// URIs so perception services can read them in place.
type GCSArchive struct {
	client  *storage.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

// NewGCSArchive opens a storage client for bucket.
func NewGCSArchive(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*GCSArchive, error) {
	if bucket == "" {
		return nil, eris.New("media: bucket is required")
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "media: storage client")
	}
	return &GCSArchive{client: client, bucket: bucket, prefix: prefix, timeout: 2 * time.Minute}, nil
}

// Put uploads f under prefix/key.
func (a *GCSArchive) Put(ctx context.Context, key string, f *File) (string, error) {
	name := ObjectName(a.prefix, key, f.Name)
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	w.ContentType = f.MIMEType
	if _, err := w.Write(f.Data); err != nil {
		_ = w.Close()
		return "", eris.Wrapf(err, "media: write gs://%s/%s", a.bucket, name)
	}
	if err := w.Close(); err != nil {
		return "", eris.Wrapf(err, "media: close gs://%s/%s", a.bucket, name)
	}

	uri := "gs://" + a.bucket + "/" + name
	zap.L().Debug("media: archived upload", zap.String("uri", uri), zap.Int("bytes", len(f.Data)))
	return uri, nil
}

// Close releases the storage client.
func (a *GCSArchive) Close() error {
	return a.client.Close()
}

// ObjectName builds prefix/key/filename with an unsafe-character-free filename.
func ObjectName(prefix, key, filename string) string {
	filename = path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if filename == "." || filename == "/" || filename == "" {
		filename = "upload"
	}
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, filename)
	return path.Join(strings.Trim(prefix, "/"), key, clean)
}
