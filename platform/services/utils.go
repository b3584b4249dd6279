package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/client"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/auth"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/repository"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/storage"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/validation"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils/logging"
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

// OperationResult is returned by operations whose callers expect a soft
// failure instead of an error status.
type OperationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// writeError renders field level validation failures as json and every other
// error as plain text with its coded status.
func writeError(w http.ResponseWriter, action string, err error) {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		validation.WriteErrors(w, GetResponseCode(err), verrs)
		return
	}
	http.Error(w, fmt.Sprintf("error %v: %v", action, err), GetResponseCode(err))
}

var notFoundErrors = []error{
	schema.ErrUserNotFound, schema.ErrConferenceNotFound, schema.ErrTrackNotFound,
	schema.ErrSubmissionNotFound, schema.ErrFileNotFound, schema.ErrAssignmentNotFound,
	schema.ErrReviewNotFound, schema.ErrDecisionNotFound, schema.ErrInvitationNotFound,
	schema.ErrCallForPapersNotFound, schema.ErrDeadlineNotFound,
}

func isNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// repoError attaches the response code for an error returned by the
// repository or schema lookups.
func repoError(err error) error {
	switch {
	case isNotFound(err):
		return CodedError(err, http.StatusNotFound)
	case errors.Is(err, repository.ErrDuplicate):
		return CodedError(err, http.StatusConflict)
	default:
		return CodedError(err, http.StatusInternalServerError)
	}
}

var ErrConferenceUnavailable = errors.New("conference service unavailable")

// lookupConference resolves the conference through the conference service.
// An unknown conference is a 404, any other upstream failure a 502.
func lookupConference(r *http.Request, conferences client.ConferenceDirectory, conferenceId uuid.UUID) (client.ConferenceInfo, error) {
	conference, err := conferences.GetConference(r.Context(), auth.BearerToken(r), conferenceId)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return conference, CodedError(schema.ErrConferenceNotFound, http.StatusNotFound)
		}
		slog.Error("conference lookup failed", "code", logging.UPSTREAM_DEGRADED, "conference_id", conferenceId, "error", err)
		return conference, CodedError(ErrConferenceUnavailable, http.StatusBadGateway)
	}
	return conference, nil
}

func checkConferenceManager(p auth.Principal, conference client.ConferenceInfo) error {
	if !canManageConference(p, conference.CreatedBy) {
		return forbidden("user %v does not manage conference %v", p.UserId, conference.Id)
	}
	return nil
}

// lookupManagedConference resolves the conference through the conference
// service and checks that the caller created it or is an admin. It makes an
// http call so it must not run inside a unit of work.
func lookupManagedConference(r *http.Request, conferences client.ConferenceDirectory, p auth.Principal, conferenceId uuid.UUID) (client.ConferenceInfo, error) {
	conference, err := lookupConference(r, conferences, conferenceId)
	if err != nil {
		return conference, err
	}
	return conference, checkConferenceManager(p, conference)
}

func requirePrincipal(r *http.Request) (auth.Principal, error) {
	p, err := auth.PrincipalFromContext(r)
	if err != nil {
		return auth.Principal{}, CodedError(err, http.StatusUnauthorized)
	}
	return p, nil
}

func forbidden(format string, args ...interface{}) error {
	return CodedError(fmt.Errorf(format, args...), http.StatusForbidden)
}

const maxReservedUploadSpace = 20 << 30

// checkDiskUsage keeps a fifth of the upload volume free, capped at 20GiB for
// very large volumes.
func checkDiskUsage(store storage.Storage) error {
	stats, err := store.Usage()
	if err != nil {
		slog.Error("unable to read upload volume usage", "code", logging.SUBMISSION, "error", err)
		return CodedError(errors.New("unable to read upload volume usage"), http.StatusInternalServerError)
	}

	reserve := min(stats.TotalBytes/5, maxReservedUploadSpace)
	if stats.FreeBytes >= reserve {
		return nil
	}

	return CodedError(fmt.Errorf(
		"upload volume is almost full (%s of %s free), %s must be freed before accepting files",
		humanize.IBytes(stats.FreeBytes), humanize.IBytes(stats.TotalBytes), humanize.IBytes(reserve-stats.FreeBytes),
	), http.StatusInsufficientStorage)
}

func checkSufficientStorage(store storage.Storage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := checkDiskUsage(store); err != nil {
				writeError(w, "accepting upload", err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
