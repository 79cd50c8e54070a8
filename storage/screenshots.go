package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/formbot-io/formbot/logger"
)

// contentTypeUploader is implemented by backends that can record an
// explicit Content-Type alongside the object.
type contentTypeUploader interface {
	UploadWithContentType(ctx context.Context, path string, reader io.Reader, contentType string) error
}

// ScreenshotStore uploads final execution screenshots into blob storage
// under a per-owner prefix.
type ScreenshotStore struct {
	blobs  BlobStorage
	logger logger.Logger
}

func NewScreenshotStore(blobs BlobStorage, log logger.Logger) *ScreenshotStore {
	return &ScreenshotStore{
		blobs:  blobs,
		logger: log,
	}
}

// Key returns the storage key for an execution screenshot. Kind
// distinguishes a real run's "final" shot from a "dryrun" one.
func Key(ownerID uint, executionID, kind string) string {
	return fmt.Sprintf("%d/%s_%s.png", ownerID, executionID, kind)
}

// Upload stores the screenshot at localPath under the execution's key and
// returns the key and the file size in bytes.
func (s *ScreenshotStore) Upload(ctx context.Context, localPath string, ownerID uint, executionID, kind string) (string, int64, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", 0, fmt.Errorf("open screenshot: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("stat screenshot: %w", err)
	}

	key := Key(ownerID, executionID, kind)
	if ct, ok := s.blobs.(contentTypeUploader); ok {
		err = ct.UploadWithContentType(ctx, key, file, "image/png")
	} else {
		err = s.blobs.Upload(ctx, key, file)
	}
	if err != nil {
		return "", 0, fmt.Errorf("upload screenshot: %w", err)
	}

	s.logger.Info(ctx, "screenshot uploaded", map[string]interface{}{
		"key":  key,
		"size": info.Size(),
	})
	return key, info.Size(), nil
}
