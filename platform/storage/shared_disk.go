package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

var ErrInvalidPath = errors.New("path escapes storage root")

// SharedDiskStorage keeps submission files under a single directory, usually
// a volume mounted into every submission service replica.
type SharedDiskStorage struct {
	root string
}

func NewSharedDisk(root string) Storage {
	slog.Info("using shared disk for submission files", "root", root)
	return &SharedDiskStorage{root: filepath.Clean(root)}
}

// resolve maps a storage key to an absolute file path under root.
func (s *SharedDiskStorage) resolve(key string) (string, error) {
	target := filepath.Join(s.root, filepath.FromSlash(key))
	if target != s.root && !strings.HasPrefix(target, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	return target, nil
}

func (s *SharedDiskStorage) fail(op, key string, err error) error {
	slog.Error("shared disk "+op+" failed", "key", key, "root", s.root, "error", err)
	return fmt.Errorf("%s %q: %w", op, key, err)
}

func (s *SharedDiskStorage) Read(key string) (io.ReadCloser, error) {
	target, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(target)
	if err != nil {
		return nil, s.fail("read", key, err)
	}
	return file, nil
}

// Write lands the upload in a hidden temp file next to the target and renames
// it into place. Readers see either the old file or the complete new one.
func (s *SharedDiskStorage) Write(key string, data io.Reader) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return s.fail("mkdir", key, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return s.fail("create", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return s.fail("write", key, err)
	}
	if err := tmp.Close(); err != nil {
		return s.fail("write", key, err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return s.fail("rename", key, err)
	}
	return nil
}

// Delete removes a file or a whole submission directory. Missing keys are not
// an error.
func (s *SharedDiskStorage) Delete(key string) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(target); err != nil {
		return s.fail("delete", key, err)
	}
	return nil
}

func (s *SharedDiskStorage) stat(key string) (fs.FileInfo, error) {
	target, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Stat(target)
}

func (s *SharedDiskStorage) Exists(key string) (bool, error) {
	_, err := s.stat(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case errors.Is(err, ErrInvalidPath):
		return false, err
	default:
		return false, s.fail("stat", key, err)
	}
}

func (s *SharedDiskStorage) Size(key string) (int64, error) {
	info, err := s.stat(key)
	if errors.Is(err, ErrInvalidPath) {
		return 0, err
	}
	if err != nil {
		return 0, s.fail("stat", key, err)
	}
	return info.Size(), nil
}

// Usage reports the filesystem holding root. Uploads are refused once it runs
// low.
func (s *SharedDiskStorage) Usage() (UsageStats, error) {
	var fsStat unix.Statfs_t
	if err := unix.Statfs(s.root, &fsStat); err != nil {
		return UsageStats{}, s.fail("statfs", ".", err)
	}

	blockSize := uint64(fsStat.Bsize)
	return UsageStats{
		TotalBytes: fsStat.Blocks * blockSize,
		FreeBytes:  fsStat.Bavail * blockSize,
	}, nil
}
