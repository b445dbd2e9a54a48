// forum/upload.go
package forum

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxUploadSize is the largest accepted image in bytes.
const MaxUploadSize = 10 << 20

// UploadURLPrefix is the public path under which stored images are served.
const UploadURLPrefix = "/uploads/"

var allowedImageTypes = map[string]bool{
	"jpeg": true,
	"jpg":  true,
	"png":  true,
	"gif":  true,
	"webp": true,
}

// Uploads stores image attachments in a directory served at UploadURLPrefix.
type Uploads struct {
	dir     string
	maxSize int64
}

func NewUploads(dir string) (*Uploads, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Uploads{dir: dir, maxSize: MaxUploadSize}, nil
}

func (u *Uploads) Dir() string { return u.dir }

// Store writes r under a fresh unique name that keeps the original
// extension and returns the URL path of the stored file.
func (u *Uploads) Store(r io.Reader, originalName, mimeType string) (string, error) {
	ext := filepath.Ext(originalName)
	if !allowedImageTypes[strings.ToLower(strings.TrimPrefix(ext, "."))] || !allowedMIME(mimeType) {
		return "", newError(ErrUnsupportedMedia, "Only image files are allowed!")
	}

	name := uuid.New().String() + ext
	dst := filepath.Join(u.dir, name)
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(r, u.maxSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > u.maxSize {
		err = newError(ErrPayloadTooLarge, "Image exceeds the 10 MB limit")
	}
	if err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	return path.Join(UploadURLPrefix, name), nil
}

// Remove deletes a file previously returned by Store.
func (u *Uploads) Remove(url string) error {
	name, ok := strings.CutPrefix(url, UploadURLPrefix)
	if !ok || name == "" || name != filepath.Base(name) {
		return fmt.Errorf("not an upload url: %q", url)
	}
	return os.Remove(filepath.Join(u.dir, name))
}

func allowedMIME(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	sub, ok := strings.CutPrefix(mimeType, "image/")
	return ok && allowedImageTypes[sub]
}
