// Package evidence stores punch photos on disk and hands back the opaque
// reference that is attached to a punch.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxPhotoBytes limits a single upload.
const MaxPhotoBytes = 5 << 20

var (
	ErrUnsupportedFormat = errors.New("photo must be jpg, jpeg or png")
	ErrTooLarge          = fmt.Errorf("photo exceeds %d bytes", MaxPhotoBytes)
)

var allowedExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// DiskStore writes photos under Dir and serves them at URLPrefix.
type DiskStore struct {
	Dir       string
	URLPrefix string
	now       func() time.Time
}

// NewDiskStore creates dir if needed.
func NewDiskStore(dir, urlPrefix string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create photo dir: %w", err)
	}
	return &DiskStore{Dir: dir, URLPrefix: strings.TrimSuffix(urlPrefix, "/"), now: time.Now}, nil
}

// Save copies the uploaded file to disk and returns its URL. The file name
// is a SHA-256 of the user, the upload instant and the original name.
func (s *DiskStore) Save(userID string, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExt[ext] {
		return "", ErrUnsupportedFormat
	}
	if header.Size > MaxPhotoBytes {
		return "", ErrTooLarge
	}

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	name := s.fileName(userID, header.Filename) + ext
	dst, err := os.OpenFile(filepath.Join(s.Dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create photo: %w", err)
	}
	if _, err := io.Copy(dst, io.LimitReader(src, MaxPhotoBytes)); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("write photo: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	return path.Join(s.URLPrefix, name), nil
}

func (s *DiskStore) fileName(userID, original string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s-%d-%s-%s", userID, s.now().UnixNano(), original, uuid.NewString())
	return hex.EncodeToString(h.Sum(nil))
}
