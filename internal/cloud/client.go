// Package cloud mirrors recorded sessions to Google Cloud Storage as one NDJSON object and
// reads that object back as an aggregation source.
package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/divijg19/lakecross/internal/analytics"
	"github.com/divijg19/lakecross/internal/core"
)

// ErrObjectNotFound is returned when the mirror object has never been written.
var ErrObjectNotFound = errors.New("cloud: object not found")

// objects is the slice of the bucket API the mirror needs.
type objects interface {
	NewWriter(ctx context.Context, bucket, object string) io.WriteCloser
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

type gcsObjects struct {
	client *storage.Client
}

func (g gcsObjects) NewWriter(ctx context.Context, bucket, object string) io.WriteCloser {
	w := g.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/x-ndjson"
	w.CacheControl = "no-cache, no-store, must-revalidate"
	return w
}

func (g gcsObjects) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	r, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	return r, err
}

// Mirror reads and writes the session export object.
type Mirror struct {
	objects objects
	closer  io.Closer
	Bucket  string
	Object  string
}

// NewMirror connects to Cloud Storage. An empty credentialsFile uses application default
// credentials.
func NewMirror(ctx context.Context, bucket, object, credentialsFile string) (*Mirror, error) {
	if bucket == "" || object == "" {
		return nil, fmt.Errorf("new mirror: bucket and object are required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("new mirror: service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new mirror: create storage client: %w", err)
	}
	return &Mirror{objects: gcsObjects{client: client}, closer: client, Bucket: bucket, Object: object}, nil
}

// Close releases the underlying client.
func (m *Mirror) Close() error {
	if m == nil || m.closer == nil {
		return nil
	}
	return m.closer.Close()
}

// URL is the gs:// location of the mirror object.
func (m *Mirror) URL() string { return "gs://" + m.Bucket + "/" + m.Object }

// Export replaces the mirror object with the given sessions, one JSON document per line.
func (m *Mirror) Export(ctx context.Context, sessions []core.SessionRecord) error {
	w := m.objects.NewWriter(ctx, m.Bucket, m.Object)
	if err := analytics.WriteNDJSON(w, sessions); err != nil {
		_ = w.Close()
		return fmt.Errorf("export %s: %w", m.URL(), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("export %s: close writer: %w", m.URL(), err)
	}
	return nil
}

// Documents reads the mirror object as an aggregation source. A missing object is an
// empty collection.
func (m *Mirror) Documents(ctx context.Context) ([]json.RawMessage, error) {
	r, err := m.objects.NewReader(ctx, m.Bucket, m.Object)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", m.URL(), err)
	}
	defer r.Close()
	docs, err := analytics.ReadNDJSON(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", m.URL(), err)
	}
	return docs, nil
}

// ParseURL splits gs://bucket/path/to/object.
func ParseURL(raw string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(raw, "gs://")
	if !ok {
		return "", "", fmt.Errorf("parse url %q: missing gs:// scheme", raw)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("parse url %q: want gs://bucket/object", raw)
	}
	return bucket, object, nil
}
