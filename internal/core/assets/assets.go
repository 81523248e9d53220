// Package assets stores the files produced by enrichment: one PNG screenshot
// per bookmark in a flat directory, and scraped post images under a
// per-bookmark subdirectory.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNotFound is returned when a requested asset does not exist.
var ErrNotFound = errors.New("asset not found")

// Config captures the directories assets are written to.
type Config struct {
	ScreenshotsDir string `mapstructure:"screenshots_dir"`
	ImagesDir      string `mapstructure:"images_dir"`
}

// Store reads and writes enrichment assets on the local filesystem.
type Store struct {
	screenshotsDir string
	imagesDir      string
}

// New creates both asset roots if needed and checks they are writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.ScreenshotsDir) == "" {
		return nil, fmt.Errorf("screenshots directory is required")
	}
	if strings.TrimSpace(cfg.ImagesDir) == "" {
		return nil, fmt.Errorf("images directory is required")
	}
	for _, dir := range []string{cfg.ScreenshotsDir, cfg.ImagesDir} {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
	}
	return &Store{
		screenshotsDir: cfg.ScreenshotsDir,
		imagesDir:      cfg.ImagesDir,
	}, nil
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat %s: %w", dir, err)
		}
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return fmt.Errorf("failed to create %s: %w", dir, mkErr)
		}
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	testFile := filepath.Join(dir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	if err := os.Remove(testFile); err != nil {
		return fmt.Errorf("failed to clean up test file: %w", err)
	}
	return nil
}

// ScreenshotName is the stored filename of a bookmark's screenshot.
func ScreenshotName(id int64) string {
	return strconv.FormatInt(id, 10) + ".png"
}

// ImageName is the stored filename of the index-th scanned post image.
func ImageName(index int) string {
	return fmt.Sprintf("img_%d.jpg", index)
}

// ScreenshotPath returns where the screenshot for id lives.
func (s *Store) ScreenshotPath(id int64) string {
	return filepath.Join(s.screenshotsDir, ScreenshotName(id))
}

// ImageDir returns the directory holding the post images for id.
func (s *Store) ImageDir(id int64) string {
	return filepath.Join(s.imagesDir, strconv.FormatInt(id, 10))
}

// ImagePath resolves a client-supplied image name for id. Only the base name
// is kept so the result can never leave the bookmark's directory.
func (s *Store) ImagePath(id int64, name string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, "\\", "/")))
	if base == "/" || base == "." || base == ".." || base == "" {
		return "", fmt.Errorf("%w: invalid image name %q", ErrNotFound, name)
	}
	return filepath.Join(s.ImageDir(id), base), nil
}

// WriteScreenshot stores PNG bytes for id and returns the stored filename.
func (s *Store) WriteScreenshot(id int64, png []byte) (string, error) {
	if err := writeFileAtomic(s.ScreenshotPath(id), png); err != nil {
		return "", fmt.Errorf("failed to write screenshot for %d: %w", id, err)
	}
	return ScreenshotName(id), nil
}

// WriteImage stores the index-th post image for id and returns its filename.
func (s *Store) WriteImage(id int64, index int, data []byte) (string, error) {
	dir := s.ImageDir(id)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}
	name := ImageName(index)
	if err := writeFileAtomic(filepath.Join(dir, name), data); err != nil {
		return "", fmt.Errorf("failed to write image %s for %d: %w", name, id, err)
	}
	return name, nil
}

// OpenScreenshot opens the screenshot for id.
func (s *Store) OpenScreenshot(id int64) (*os.File, error) {
	return openAsset(s.ScreenshotPath(id))
}

// OpenImage opens a post image for id after sanitizing name.
func (s *Store) OpenImage(id int64, name string) (*os.File, error) {
	path, err := s.ImagePath(id, name)
	if err != nil {
		return nil, err
	}
	return openAsset(path)
}

// Remove deletes the screenshot and the whole image directory for id.
// Missing files are not an error.
func (s *Store) Remove(id int64) error {
	var errs []error
	if err := os.Remove(s.ScreenshotPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, fmt.Errorf("failed to remove screenshot: %w", err))
	}
	if err := os.RemoveAll(s.ImageDir(id)); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove image directory: %w", err))
	}
	return errors.Join(errs...)
}

func openAsset(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
		}
		return nil, fmt.Errorf("failed to open asset: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat asset: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
	}
	return f, nil
}

// writeFileAtomic writes through a temp file in the target directory so
// readers never observe a partially written asset.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o640); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
