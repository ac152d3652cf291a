// Package media forwards locally staged upload files to an external object
// store and hands back their public URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoStore   = errors.New("media store not configured")
	ErrEmptyPath = errors.New("no local file given")
)

// ObjectStore persists an object and returns the URL it is publicly served from.
type ObjectStore interface {
	Put(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error)
}

// Uploader stages files to the ObjectStore. The local file is always removed
// once Upload returns, whether or not the upload succeeded.
type Uploader struct {
	Store   ObjectStore
	Timeout time.Duration
	Logger  *logrus.Logger

	now func() time.Time
}

func NewUploader(store ObjectStore, timeout time.Duration, logger *logrus.Logger) *Uploader {
	return &Uploader{Store: store, Timeout: timeout, Logger: logger, now: time.Now}
}

// Upload sends the file at localPath to the store and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	if localPath == "" {
		return "", ErrEmptyPath
	}
	defer u.removeLocal(localPath)

	if u.Store == nil {
		return "", ErrNoStore
	}

	mt, err := mimetype.DetectFile(localPath)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	objectPath := ObjectPath(ResourceType(mt.String()), extensionFor(mt, localPath), u.clock())

	if u.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.Timeout)
		defer cancel()
	}
	url, err := u.Store.Put(ctx, objectPath, mt.String(), f)
	if err != nil {
		if u.Logger != nil {
			u.Logger.WithError(err).WithField("object", objectPath).Warn("media upload failed")
		}
		return "", fmt.Errorf("upload %s: %w", objectPath, err)
	}
	if u.Logger != nil {
		u.Logger.WithField("object", objectPath).WithField("content_type", mt.String()).Debug("media uploaded")
	}
	return url, nil
}

func (u *Uploader) removeLocal(localPath string) {
	if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) && u.Logger != nil {
		u.Logger.WithError(err).WithField("path", localPath).Warn("failed to remove staged file")
	}
}

func (u *Uploader) clock() time.Time {
	if u.now == nil {
		return time.Now()
	}
	return u.now()
}

// ResourceType buckets a MIME type into image, video or raw.
func ResourceType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"), strings.HasPrefix(contentType, "audio/"):
		return "video"
	default:
		return "raw"
	}
}

// ObjectPath returns "<resourceType>/<yyyy>/<mm>/<random><ext>".
func ObjectPath(resourceType, ext string, at time.Time) string {
	return path.Join(resourceType, at.UTC().Format("2006"), at.UTC().Format("01"), uuid.NewString()+ext)
}

func extensionFor(mt *mimetype.MIME, localPath string) string {
	if ext := mt.Extension(); ext != "" {
		return ext
	}
	return strings.ToLower(filepath.Ext(localPath))
}
