// Package assets keeps generated page images on disk, re-encoded to
// high-quality WebP.
package assets

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/webp"

	"fable/pkg/utils"
)

type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	if dir == "" {
		dir = filepath.Join("data", "pages")
	}
	return &Store{dir: dir}
}

// SavePage encodes the image as WebP, writes it under the story's
// directory, and returns the API locator for the artifact.
func (s *Store) SavePage(storyID string, page int, data []byte, mimeType string) (string, error) {
	img, err := decode(data)
	if err != nil {
		return "", err
	}

	buf := new(bytes.Buffer)
	if err := webp.Encode(buf, img, webp.Options{Lossless: false, Quality: 100}); err != nil {
		return "", fmt.Errorf("encoding webp: %w", err)
	}

	dir := filepath.Join(s.dir, utils.SanitizeFilename(storyID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifact dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("page-%03d.webp", page))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}

	return fmt.Sprintf("/api/stories/%s/pages/%d/image", storyID, page), nil
}

// ReadPage returns the stored WebP bytes for a page.
func (s *Store) ReadPage(storyID string, page int) ([]byte, error) {
	path := filepath.Join(s.dir, utils.SanitizeFilename(storyID), fmt.Sprintf("page-%03d.webp", page))
	return os.ReadFile(path)
}

// DeleteStory removes every artifact belonging to the story.
func (s *Store) DeleteStory(storyID string) error {
	return os.RemoveAll(filepath.Join(s.dir, utils.SanitizeFilename(storyID)))
}

func decode(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}
	// Providers occasionally answer with JPEG or WebP; try the registered
	// decoders before giving up.
	img, _, err2 := image.Decode(bytes.NewReader(data))
	if err2 != nil {
		return nil, fmt.Errorf("decoding image (png: %v, generic: %v)", err, err2)
	}
	return img, nil
}
