package forum

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestUploads(t *testing.T) *Uploads {
	t.Helper()
	u, err := NewUploads(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("NewUploads failed: %v", err)
	}
	return u
}

func TestStoreRejectsMismatchedType(t *testing.T) {
	u := newTestUploads(t)
	cases := []struct{ name, mime string }{
		{"cat.png", "text/plain"},
		{"cat.txt", "image/png"},
		{"cat", "image/png"},
		{"cat.svg", "image/svg+xml"},
	}
	for _, c := range cases {
		_, err := u.Store(strings.NewReader("data"), c.name, c.mime)
		if !errors.Is(err, ErrUnsupportedMedia) {
			t.Errorf("Store(%s, %s): expected ErrUnsupportedMedia, got %v", c.name, c.mime, err)
		}
	}
}

func TestStoreRejectsOversized(t *testing.T) {
	u := newTestUploads(t)
	big := bytes.NewReader(make([]byte, 11<<20))
	if _, err := u.Store(big, "huge.jpg", "image/jpeg"); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	entries, _ := os.ReadDir(u.Dir())
	if len(entries) != 0 {
		t.Errorf("expected no files left behind, found %d", len(entries))
	}
}

func TestStoreAcceptsImages(t *testing.T) {
	u := newTestUploads(t)
	payload := bytes.Repeat([]byte{0xff}, 2<<20)

	first, err := u.Store(bytes.NewReader(payload), "photo.JPG", "image/jpeg")
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	second, err := u.Store(bytes.NewReader(payload), "photo.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if first == second {
		t.Errorf("expected distinct urls, both %s", first)
	}
	if !strings.HasPrefix(first, UploadURLPrefix) || !strings.HasSuffix(first, ".JPG") {
		t.Errorf("expected original extension kept, got %s", first)
	}
	if !strings.HasSuffix(second, ".jpg") {
		t.Errorf("unexpected url %s", second)
	}

	data, err := os.ReadFile(filepath.Join(u.Dir(), strings.TrimPrefix(first, UploadURLPrefix)))
	if err != nil {
		t.Fatalf("stored file missing: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Error("stored content differs")
	}
}

func TestAllowedMIME(t *testing.T) {
	for mime, want := range map[string]bool{
		"image/png":                true,
		"IMAGE/WEBP":               true,
		"image/jpeg; charset=x":    true,
		"image/gif":                true,
		"image/bmp":                false,
		"application/octet-stream": false,
		"":                         false,
	} {
		if got := allowedMIME(mime); got != want {
			t.Errorf("allowedMIME(%q) = %v, want %v", mime, got, want)
		}
	}
}

func TestRemove(t *testing.T) {
	u := newTestUploads(t)
	url, err := u.Store(strings.NewReader("gif"), "wave.gif", "image/gif")
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := u.Remove(url); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if entries, _ := os.ReadDir(u.Dir()); len(entries) != 0 {
		t.Errorf("expected empty directory, found %d files", len(entries))
	}
	for _, bad := range []string{"/etc/passwd", "/uploads/../forum.db", "/uploads/"} {
		if err := u.Remove(bad); err == nil {
			t.Errorf("Remove(%q): expected error", bad)
		}
	}
}
