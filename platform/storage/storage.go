package storage

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
)

type UsageStats struct {
	TotalBytes uint64
	FreeBytes  uint64
}

type Storage interface {
	Read(path string) (io.ReadCloser, error)
	Write(path string, data io.Reader) error
	Delete(path string) error
	Exists(path string) (bool, error)
	Size(path string) (int64, error)
	Usage() (UsageStats, error)
}

func SubmissionPath(submissionId uuid.UUID) string {
	return filepath.Join("submissions", submissionId.String())
}

func SubmissionFilePath(submissionId, fileId uuid.UUID, ext string) string {
	return filepath.Join(SubmissionPath(submissionId), fmt.Sprintf("%v%v", fileId, ext))
}
