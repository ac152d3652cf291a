package media

import (
	"context"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
)

// GCSStore writes objects into a Google Cloud Storage bucket.
type GCSStore struct {
	Client *storage.Client
	Bucket string
}

func NewGCSStore(client *storage.Client, bucket string) *GCSStore {
	return &GCSStore{Client: client, Bucket: bucket}
}

func (s *GCSStore) Put(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	if s.Client == nil || s.Bucket == "" {
		return "", ErrNoStore
	}
	wc := s.Client.Bucket(s.Bucket).Object(objectPath).NewWriter(ctx)
	wc.ContentType = contentType
	wc.ChunkSize = 0
	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return "", err
	}
	if err := wc.Close(); err != nil {
		return "", err
	}
	return GCSPublicURL(s.Bucket, objectPath), nil
}

// GCSPublicURL is the storage.googleapis.com address of a publicly readable object.
func GCSPublicURL(bucket, objectPath string) string {
	segs := strings.Split(objectPath, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return "https://storage.googleapis.com/" + bucket + "/" + strings.Join(segs, "/")
}
