package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrNotImage = errors.New("only images allowed")

// DiskStore writes profile photos under a single directory which is also
// served statically at /uploads.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	err := os.MkdirAll(dir, 0o755)

	if err != nil {
		return nil, err
	}

	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) Dir() string {
	return s.dir
}

// SaveProfilePhoto sniffs the content before anything touches disk and
// rejects non-images with ErrNotImage. The stored name is
// "<userID>-<unix-ms><ext>" so repeated uploads never collide. The
// returned reference is the public "uploads/<name>" path persisted on
// the user record.
func (s *DiskStore) SaveProfilePhoto(userID, originalName string, r io.Reader) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)

	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}

	contentType := http.DetectContentType(head[:n])

	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrNotImage
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	name := fmt.Sprintf("%s-%d%s", userID, time.Now().UnixMilli(), ext)
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)

	if err != nil {
		return "", err
	}

	_, err = io.Copy(f, io.MultiReader(bytes.NewReader(head[:n]), r))

	closeErr := f.Close()

	if err == nil {
		err = closeErr
	}

	if err != nil {
		// do not leave a partial file behind
		_ = os.Remove(path)
		return "", err
	}

	return "uploads/" + name, nil
}
