package services

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/repository"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/storage"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/validation"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils/logging"
)

var allowedFileExtensions = []string{".pdf", ".doc", ".docx"}

func getMultipartBoundary(r *http.Request) (string, error) {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return "", fmt.Errorf("missing 'Content-Type' header")
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("error parsing media type in request: %w", err)
	}
	if mediaType != "multipart/form-data" {
		return "", fmt.Errorf("expected media type to be 'multipart/form-data'")
	}

	boundary, ok := params["boundary"]
	if !ok {
		return "", fmt.Errorf("missing 'boundary' parameter in 'Content-Type' header")
	}

	return boundary, nil
}

// nextFilePart skips form fields until the part named "file".
func nextFilePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return nil, errors.New("missing 'file' part in upload")
		}
		if err != nil {
			return nil, fmt.Errorf("error parsing multipart request: %w", err)
		}
		if part.FormName() == "file" {
			if part.FileName() == "" {
				part.Close()
				return nil, errors.New("invalid filename detected in upload")
			}
			return part, nil
		}
		part.Close()
	}
}

// sizeLimitedReader fails the read that pushes the total past the limit.
type sizeLimitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *sizeLimitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, errors.New("upload exceeds size limit")
	}
	return n, err
}

func (l *sizeLimitedReader) exceeded() bool {
	return l.remaining < 0
}

func (s *SubmissionService) countPages(path string) int {
	file, err := s.storage.Read(path)
	if err != nil {
		slog.Warn("unable to open upload for page count", "path", path, "error", err)
		return 0
	}
	defer file.Close()

	pages, err := storage.CountPdfPages(file)
	if err != nil {
		slog.Warn("unable to count pdf pages", "path", path, "error", err)
		return 0
	}
	return pages
}

func (s *SubmissionService) UploadFile(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "uploading file", err)
		return
	}

	submissionId, err := utils.URLParamUUID(r, "submission_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := loadEditableSubmission(s.uow.DB(), p, submissionId); err != nil {
		writeError(w, "uploading file", err)
		return
	}

	boundary, err := getMultipartBoundary(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Room for the multipart envelope on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+1024*1024)

	part, err := nextFilePart(multipart.NewReader(r.Body, boundary))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer part.Close()

	fileName := filepath.Base(part.FileName())
	ext := strings.ToLower(filepath.Ext(fileName))

	builder := s.validator.Builder(r)
	if !slices.Contains(allowedFileExtensions, ext) {
		builder.Add("file", validation.CodeFileType, strings.Join(allowedFileExtensions, ", "))
		writeError(w, "uploading file", builder.Err())
		return
	}

	file := schema.SubmissionFile{
		Id:           uuid.New(),
		SubmissionId: submissionId,
		FileName:     fileName,
		ContentType:  part.Header.Get("Content-Type"),
		UploadedBy:   p.UserId,
		UploadedAt:   time.Now().UTC(),
	}
	if file.ContentType == "" || file.ContentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			file.ContentType = byExt
		}
	}
	file.StoragePath = storage.SubmissionFilePath(submissionId, file.Id, ext)

	limited := &sizeLimitedReader{r: part, remaining: s.maxUploadBytes}
	if err := s.storage.Write(file.StoragePath, limited); err != nil {
		if limited.exceeded() {
			builder.Add("file", validation.CodeFileTooLarge, humanize.IBytes(uint64(s.maxUploadBytes)))
			writeError(w, "uploading file", builder.Err())
			return
		}
		http.Error(w, fmt.Sprintf("error saving file '%v': %v", fileName, err), http.StatusBadRequest)
		return
	}

	file.SizeBytes, err = s.storage.Size(file.StoragePath)
	if err != nil {
		slog.Warn("unable to stat uploaded file", "path", file.StoragePath, "error", err)
	}
	if ext == ".pdf" {
		file.PageCount = s.countPages(file.StoragePath)
	}

	err = s.uow.Do(func(repos *repository.Repos) error {
		if _, err := loadEditableSubmission(repos.Txn, p, submissionId); err != nil {
			return err
		}
		if err := repos.Files.Create(&file); err != nil {
			return repoError(err)
		}
		return nil
	})
	if err != nil {
		if delErr := s.storage.Delete(file.StoragePath); delErr != nil {
			slog.Error("error removing orphaned upload", "path", file.StoragePath, "error", delErr)
		}
		writeError(w, "uploading file", err)
		return
	}

	slog.Info("submission file uploaded", "code", logging.SUBMISSION, "submission_id", submissionId, "file_id", file.Id, "size", file.SizeBytes, "pages", file.PageCount)

	utils.WriteJsonResponse(w, convertToFileInfo(file))
}

func (s *SubmissionService) ListFiles(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "listing files", err)
		return
	}

	submissionId, err := utils.URLParamUUID(r, "submission_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	submission, err := loadViewableSubmission(s.uow.DB(), p, submissionId, false, true)
	if err != nil {
		writeError(w, "listing files", err)
		return
	}

	infos := make([]FileInfo, 0, len(submission.Files))
	for _, file := range submission.Files {
		infos = append(infos, convertToFileInfo(file))
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *SubmissionService) DownloadFile(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "downloading file", err)
		return
	}

	submissionId, err := utils.URLParamUUID(r, "submission_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fileId, err := utils.URLParamUUID(r, "file_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := loadViewableSubmission(s.uow.DB(), p, submissionId, false, false); err != nil {
		writeError(w, "downloading file", err)
		return
	}

	file, err := schema.GetSubmissionFile(submissionId, fileId, s.uow.DB())
	if err != nil {
		writeError(w, "downloading file", repoError(err))
		return
	}

	data, err := s.storage.Read(file.StoragePath)
	if err != nil {
		http.Error(w, fmt.Sprintf("error reading file: %v", err), http.StatusInternalServerError)
		return
	}
	defer data.Close()

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.FileName}))
	if file.SizeBytes > 0 {
		w.Header().Set("Content-Length", fmt.Sprint(file.SizeBytes))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, data); err != nil {
		slog.Error("error streaming file", "file_id", fileId, "error", err)
	}
}
