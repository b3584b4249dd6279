package services

import (
	"database/sql"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/metrics"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/similarity"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/summarize"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils"
)

const unassignedTrack = "unassigned"

type SubmissionStatistics struct {
	ConferenceId   uuid.UUID        `json:"conferenceId"`
	Total          int64            `json:"total"`
	ByStatus       map[string]int64 `json:"byStatus"`
	ByTrack        map[string]int64 `json:"byTrack"`
	AverageAuthors float64          `json:"averageAuthors"`
	AveragePages   float64          `json:"averagePages"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *SubmissionService) Statistics(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "computing statistics", err)
		return
	}

	conferenceId, err := utils.URLParamUUID(r, "conference_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := lookupManagedConference(r, s.conferences, p, conferenceId); err != nil {
		writeError(w, "computing statistics", err)
		return
	}

	db := s.uow.DB()
	stats := SubmissionStatistics{
		ConferenceId: conferenceId,
		ByStatus:     map[string]int64{},
		ByTrack:      map[string]int64{},
	}

	var byStatus []struct {
		Status string
		Count  int64
	}
	result := db.Model(&schema.Submission{}).
		Select("status, COUNT(*) AS count").
		Where("conference_id = ?", conferenceId).
		Group("status").
		Scan(&byStatus)
	if result.Error != nil {
		slog.Error("sql error counting submissions by status", "conference_id", conferenceId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}
	for _, row := range byStatus {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
	}

	var byTrack []struct {
		TrackId *uuid.UUID
		Count   int64
	}
	result = db.Model(&schema.Submission{}).
		Select("track_id, COUNT(*) AS count").
		Where("conference_id = ?", conferenceId).
		Group("track_id").
		Scan(&byTrack)
	if result.Error != nil {
		slog.Error("sql error counting submissions by track", "conference_id", conferenceId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}
	for _, row := range byTrack {
		key := unassignedTrack
		if row.TrackId != nil {
			key = row.TrackId.String()
		}
		stats.ByTrack[key] += row.Count
	}

	if stats.Total > 0 {
		var authors int64
		result = db.Model(&schema.Author{}).
			Joins("JOIN submissions ON submissions.id = authors.submission_id").
			Where("submissions.conference_id = ?", conferenceId).
			Count(&authors)
		if result.Error != nil {
			slog.Error("sql error counting authors", "conference_id", conferenceId, "error", result.Error)
			http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
			return
		}
		stats.AverageAuthors = round2(float64(authors) / float64(stats.Total))

		var pages sql.NullFloat64
		err := db.Model(&schema.SubmissionFile{}).
			Select("AVG(submission_files.page_count)").
			Joins("JOIN submissions ON submissions.id = submission_files.submission_id").
			Where("submissions.conference_id = ? AND submission_files.page_count > 0", conferenceId).
			Row().Scan(&pages)
		if err != nil {
			slog.Error("sql error averaging page counts", "conference_id", conferenceId, "error", err)
			http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
			return
		}
		if pages.Valid {
			stats.AveragePages = round2(pages.Float64)
		}
	}

	utils.WriteJsonResponse(w, stats)
}

type SimilarSubmission struct {
	Id          uuid.UUID `json:"id"`
	PaperNumber int       `json:"paperNumber"`
	Title       string    `json:"title"`
	Score       float64   `json:"score"`
}

func submissionText(s schema.Submission) string {
	return strings.Join(append([]string{s.Title, s.Abstract}, s.Keywords...), " ")
}

// Similar ranks the other live submissions of the same conference by tf-idf
// cosine similarity to this one.
func (s *SubmissionService) Similar(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "finding similar submissions", err)
		return
	}

	submissionId, err := utils.URLParamUUID(r, "submission_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	submission, err := loadViewableSubmission(s.uow.DB(), p, submissionId, false, false)
	if err != nil {
		writeError(w, "finding similar submissions", err)
		return
	}

	timer := prometheus.NewTimer(metrics.SimilarityQuery)
	defer timer.ObserveDuration()

	var others []schema.Submission
	result := s.uow.DB().
		Select("id", "paper_number", "title", "abstract", "keywords").
		Where("conference_id = ? AND status <> ? AND id <> ?", submission.ConferenceId, schema.SubmissionWithdrawn, submissionId).
		Find(&others)
	if result.Error != nil {
		slog.Error("sql error loading similarity corpus", "conference_id", submission.ConferenceId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	byId := make(map[uuid.UUID]schema.Submission, len(others))
	corpus := make([]similarity.Document, 0, len(others)+1)
	corpus = append(corpus, similarity.Document{Id: submission.Id, Text: submissionText(submission)})
	for _, other := range others {
		byId[other.Id] = other
		corpus = append(corpus, similarity.Document{Id: other.Id, Text: submissionText(other)})
	}

	matches := similarity.Rank(corpus[0], corpus, s.similarityMaxResults)

	similar := make([]SimilarSubmission, 0, len(matches))
	for _, match := range matches {
		other := byId[match.Id]
		similar = append(similar, SimilarSubmission{Id: other.Id, PaperNumber: other.PaperNumber, Title: other.Title, Score: match.Score})
	}

	utils.WriteJsonResponse(w, similar)
}

type SummaryResponse struct {
	SubmissionId uuid.UUID `json:"submissionId"`
	summarize.Summary
}

func (s *SubmissionService) Summarize(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "summarizing submission", err)
		return
	}

	submissionId, err := utils.URLParamUUID(r, "submission_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	submission, err := loadViewableSubmission(s.uow.DB(), p, submissionId, false, false)
	if err != nil {
		writeError(w, "summarizing submission", err)
		return
	}

	summary, err := s.summarizer.Summarize(r.Context(), submission.Abstract)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, summarize.ErrEmptyText) {
			code = http.StatusBadRequest
		}
		writeError(w, "summarizing submission", CodedError(err, code))
		return
	}

	utils.WriteJsonResponse(w, SummaryResponse{SubmissionId: submissionId, Summary: summary})
}
