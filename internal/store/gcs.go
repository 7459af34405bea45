package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"

	"github.com/JonMunkholm/ledgerimport/internal/core"
)

// GCSDocuments keeps workbooks as objects under prefix in a bucket. Import
// results are recorded in the object's metadata.
type GCSDocuments struct {
	bucket *storage.BucketHandle
	prefix string
}

func NewGCSDocuments(client *storage.Client, bucket, prefix string) *GCSDocuments {
	return &GCSDocuments{bucket: client.Bucket(bucket), prefix: prefix}
}

func (s *GCSDocuments) object(id string) *storage.ObjectHandle {
	return s.bucket.Object(s.prefix + id + ".xlsx")
}

// Create writes a new object. The write is conditional on the object not
// existing, so a reused ID can never overwrite an upload.
func (s *GCSDocuments) Create(ctx context.Context, doc core.Document) (string, error) {
	id := uuid.NewString()
	w := s.object(id).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = doc.ContentType
	w.Metadata = map[string]string{"file_name": doc.FileName}

	if err := write(w, doc.Data); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 412 {
			return "", fmt.Errorf("document %s already exists: %w", id, err)
		}
		return "", fmt.Errorf("write document %s: %w", id, err)
	}
	return id, nil
}

func (s *GCSDocuments) Load(ctx context.Context, id string) ([]byte, error) {
	r, err := s.object(id).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("open document %s: %w", id, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", id, err)
	}
	return data, nil
}

// Update replaces the object with the annotated workbook.
func (s *GCSDocuments) Update(ctx context.Context, id string, data []byte, meta core.DocumentMeta) error {
	obj := s.object(id)
	attrs, err := obj.Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("stat document %s: %w", id, err)
	}

	// Only replace the generation that was read.
	w := obj.If(storage.Conditions{GenerationMatch: attrs.Generation}).NewWriter(ctx)
	w.ContentType = meta.ContentType
	w.Metadata = map[string]string{
		"file_name":     meta.FileName,
		"entity_type":   string(meta.EntityType),
		"success_count": strconv.Itoa(meta.SuccessCount),
		"error_count":   strconv.Itoa(meta.ErrorCount),
	}
	if err := write(w, data); err != nil {
		return fmt.Errorf("update document %s: %w", id, err)
	}
	slog.Debug("document updated", "object", obj.ObjectName(), "bytes", len(data))
	return nil
}

func write(w *storage.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
