package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/client"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/auth"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/metrics"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/repository"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/storage"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/summarize"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/validation"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils/logging"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils/optional"
)

type SubmissionService struct {
	uow         *repository.UnitOfWork
	authn       *auth.Authenticator
	validator   *validation.Validator
	storage     storage.Storage
	users       client.UserDirectory
	conferences client.ConferenceDirectory
	summarizer  summarize.Summarizer

	maxUploadBytes       int64
	similarityMaxResults int
}

func (s *SubmissionService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.authn.Required()...)

	r.Get("/mine", s.Mine)
	r.With(auth.RequireRole(schema.RoleConferenceChair, schema.RoleTrackChair, schema.RolePcMember)).Get("/", s.List)
	r.Post("/", s.Create)
	r.With(auth.ChairOnly()).Get("/statistics/{conference_id}", s.Statistics)

	r.Route("/{submission_id}", func(r chi.Router) {
		r.Get("/", s.Get)
		r.Put("/", s.Update)
		r.Post("/submit", s.Submit)
		r.Post("/withdraw", s.Withdraw)
		r.With(auth.ChairOnly()).Put("/status", s.UpdateStatus)

		r.With(checkSufficientStorage(s.storage)).Post("/files", s.UploadFile)
		r.Get("/files", s.ListFiles)
		r.Get("/files/{file_id}", s.DownloadFile)

		r.Get("/similar", s.Similar)
		r.Post("/summary", s.Summarize)
	})

	return r
}

type AuthorInfo struct {
	Id              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Affiliation     string    `json:"affiliation"`
	AuthorOrder     int       `json:"authorOrder"`
	IsCorresponding bool      `json:"isCorresponding"`
}

type FileInfo struct {
	Id          uuid.UUID `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	PageCount   int       `json:"pageCount"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

type SubmissionInfo struct {
	Id             uuid.UUID  `json:"id"`
	ConferenceId   uuid.UUID  `json:"conferenceId"`
	TrackId        *uuid.UUID `json:"trackId"`
	PaperNumber    int        `json:"paperNumber"`
	Title          string     `json:"title"`
	Abstract       string     `json:"abstract"`
	Keywords       []string   `json:"keywords"`
	Status         string     `json:"status"`
	WithdrawReason string     `json:"withdrawReason,omitempty"`
	SubmittedBy    uuid.UUID  `json:"submittedBy"`
	SubmittedAt    *time.Time `json:"submittedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type SubmissionDetails struct {
	SubmissionInfo
	Submitter *client.UserInfo `json:"submitter,omitempty"`
	Authors   []AuthorInfo     `json:"authors"`
	Files     []FileInfo       `json:"files"`
}

func convertToSubmissionInfo(s schema.Submission) SubmissionInfo {
	keywords := s.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return SubmissionInfo{
		Id:             s.Id,
		ConferenceId:   s.ConferenceId,
		TrackId:        s.TrackId,
		PaperNumber:    s.PaperNumber,
		Title:          s.Title,
		Abstract:       s.Abstract,
		Keywords:       keywords,
		Status:         s.Status,
		WithdrawReason: s.WithdrawReason,
		SubmittedBy:    s.SubmittedBy,
		SubmittedAt:    s.SubmittedAt,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func convertToFileInfo(f schema.SubmissionFile) FileInfo {
	return FileInfo{
		Id:          f.Id,
		FileName:    f.FileName,
		ContentType: f.ContentType,
		SizeBytes:   f.SizeBytes,
		PageCount:   f.PageCount,
		UploadedAt:  f.UploadedAt,
	}
}

func convertToSubmissionDetails(s schema.Submission) SubmissionDetails {
	details := SubmissionDetails{
		SubmissionInfo: convertToSubmissionInfo(s),
		Authors:        make([]AuthorInfo, 0, len(s.Authors)),
		Files:          make([]FileInfo, 0, len(s.Files)),
	}
	for _, a := range s.Authors {
		details.Authors = append(details.Authors, AuthorInfo{
			Id:              a.Id,
			Name:            a.Name,
			Email:           a.Email,
			Affiliation:     a.Affiliation,
			AuthorOrder:     a.AuthorOrder,
			IsCorresponding: a.IsCorresponding,
		})
	}
	for _, f := range s.Files {
		details.Files = append(details.Files, convertToFileInfo(f))
	}
	return details
}

// canViewSubmission allows the submitter, chairs and PC members. Anyone else
// needs an assignment on the paper.
func canViewSubmission(txn *gorm.DB, p auth.Principal, submission schema.Submission) (bool, error) {
	if submission.SubmittedBy == p.UserId || p.HasRole(schema.RoleConferenceChair, schema.RoleTrackChair, schema.RolePcMember) {
		return true, nil
	}

	var count int64
	result := txn.Model(&schema.Assignment{}).Where("submission_id = ? AND reviewer_id = ?", submission.Id, p.UserId).Count(&count)
	if result.Error != nil {
		slog.Error("sql error checking reviewer assignment", "submission_id", submission.Id, "error", result.Error)
		return false, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	return count > 0, nil
}

// loadViewableSubmission fetches the submission and checks read access.
func loadViewableSubmission(db *gorm.DB, p auth.Principal, submissionId uuid.UUID, loadAuthors, loadFiles bool) (schema.Submission, error) {
	submission, err := schema.GetSubmission(submissionId, db, loadAuthors, loadFiles)
	if err != nil {
		return submission, repoError(err)
	}
	allowed, err := canViewSubmission(db, p, submission)
	if err != nil {
		return submission, err
	}
	if !allowed {
		return submission, forbidden("user %v cannot view submission %v", p.UserId, submissionId)
	}
	return submission, nil
}

// loadEditableSubmission fetches the submission for a content change by its
// submitter while it is still in DRAFT or SUBMITTED.
func loadEditableSubmission(db *gorm.DB, p auth.Principal, submissionId uuid.UUID) (schema.Submission, error) {
	submission, err := schema.GetSubmission(submissionId, db, false, false)
	if err != nil {
		return submission, repoError(err)
	}
	if submission.SubmittedBy != p.UserId {
		return submission, forbidden("only the submitter can modify submission %v", submissionId)
	}
	if !schema.IsEditableSubmission(submission.Status) {
		return submission, CodedError(fmt.Errorf("submission in status %v can no longer be modified", submission.Status), http.StatusConflict)
	}
	return submission, nil
}

func (s *SubmissionService) fetchConference(r *http.Request, conferenceId uuid.UUID) (client.ConferenceInfo, error) {
	return lookupConference(r, s.conferences, conferenceId)
}

type authorRequest struct {
	Name            string `json:"name" validate:"required,max=200"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Affiliation     string `json:"affiliation" validate:"max=300"`
	IsCorresponding bool   `json:"isCorresponding"`
}

type submissionContent struct {
	Title    string          `json:"title" validate:"required,max=300"`
	Abstract string          `json:"abstract" validate:"required,max=5000"`
	Keywords []string        `json:"keywords" validate:"max=10,dive,required,max=100"`
	Authors  []authorRequest `json:"authors" validate:"min=1,max=20,dive"`
}

// validateContent checks the field rules plus the author list invariants:
// unique emails and at most one corresponding author.
func (s *SubmissionService) validateContent(r *http.Request, content submissionContent) error {
	builder := s.validator.Builder(r)
	if err := builder.Merge(s.validator.Struct(r, content)); err != nil {
		return err
	}

	emails := make(map[string]bool, len(content.Authors))
	corresponding := 0
	for _, author := range content.Authors {
		email := strings.ToLower(strings.TrimSpace(author.Email))
		if emails[email] {
			builder.Add("authors", validation.CodeUniqueItems, "")
			break
		}
		emails[email] = true
	}
	for _, author := range content.Authors {
		if author.IsCorresponding {
			corresponding++
		}
	}
	if corresponding > 1 {
		builder.Add("authors", validation.CodeCorrespondingAuthor, "")
	}

	return builder.Err()
}

// buildAuthors numbers the authors in request order. The first author is
// made corresponding when nobody is flagged.
func buildAuthors(submissionId uuid.UUID, authors []authorRequest) []schema.Author {
	hasCorresponding := false
	for _, author := range authors {
		hasCorresponding = hasCorresponding || author.IsCorresponding
	}

	rows := make([]schema.Author, 0, len(authors))
	for i, author := range authors {
		rows = append(rows, schema.Author{
			Id:              uuid.New(),
			SubmissionId:    submissionId,
			AuthorOrder:     i + 1,
			Name:            strings.TrimSpace(author.Name),
			Email:           strings.TrimSpace(author.Email),
			Affiliation:     author.Affiliation,
			IsCorresponding: author.IsCorresponding || (!hasCorresponding && i == 0),
		})
	}
	return rows
}

// nextPaperNumber increments the conference's counter row in place and reads
// the new value back within txn.
func nextPaperNumber(txn *gorm.DB, conferenceId uuid.UUID) (int, error) {
	counter := schema.SubmissionCounter{ConferenceId: conferenceId}

	result := txn.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter)
	if result.Error != nil {
		slog.Error("sql error creating submission counter", "conference_id", conferenceId, "error", result.Error)
		return 0, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	result = txn.Model(&schema.SubmissionCounter{}).
		Where("conference_id = ?", conferenceId).
		UpdateColumn("last_number", gorm.Expr("last_number + 1"))
	if result.Error != nil {
		slog.Error("sql error incrementing submission counter", "conference_id", conferenceId, "error", result.Error)
		return 0, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	result = txn.First(&counter, "conference_id = ?", conferenceId)
	if result.Error != nil {
		slog.Error("sql error reading submission counter", "conference_id", conferenceId, "error", result.Error)
		return 0, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}

	return counter.LastNumber, nil
}

func checkDeadline(builder *validation.Builder, conference client.ConferenceInfo) {
	if deadline := conference.Deadline(schema.DeadlineSubmission); deadline != nil && time.Now().UTC().After(*deadline) {
		builder.Add("conferenceId", validation.CodeDeadlinePassed, "")
	}
}

type createSubmissionRequest struct {
	ConferenceId uuid.UUID       `json:"conferenceId"`
	TrackId      *uuid.UUID      `json:"trackId"`
	Title        string          `json:"title"`
	Abstract     string          `json:"abstract"`
	Keywords     []string        `json:"keywords"`
	Authors      []authorRequest `json:"authors"`
}

func (req createSubmissionRequest) content() submissionContent {
	return submissionContent{
		Title:    strings.TrimSpace(req.Title),
		Abstract: strings.TrimSpace(req.Abstract),
		Keywords: req.Keywords,
		Authors:  req.Authors,
	}
}

func (s *SubmissionService) Create(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "creating submission", err)
		return
	}

	var params createSubmissionRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	content := params.content()
	builder := s.validator.Builder(r)
	if params.ConferenceId == uuid.Nil {
		builder.Add("conferenceId", validation.CodeRequired, "")
	}
	if err := builder.Merge(s.validateContent(r, content)); err != nil {
		writeError(w, "creating submission", err)
		return
	}
	if err := builder.Err(); err != nil {
		writeError(w, "creating submission", err)
		return
	}

	conference, err := s.fetchConference(r, params.ConferenceId)
	if err != nil {
		writeError(w, "creating submission", err)
		return
	}

	if conference.Status == schema.ConferenceCancelled || conference.Status == schema.ConferenceCompleted {
		writeError(w, "creating submission", CodedError(fmt.Errorf("conference %v is %v and no longer accepts submissions", conference.Id, conference.Status), http.StatusConflict))
		return
	}

	if params.TrackId != nil && !conference.HasTrack(*params.TrackId) {
		builder.Add("trackId", validation.CodeUnknownTrack, "")
	}
	checkDeadline(builder, conference)
	if err := builder.Err(); err != nil {
		writeError(w, "creating submission", err)
		return
	}

	submissionId := uuid.New()
	submission := schema.Submission{
		Id:           submissionId,
		ConferenceId: params.ConferenceId,
		TrackId:      params.TrackId,
		Title:        content.Title,
		Abstract:     content.Abstract,
		Keywords:     content.Keywords,
		Status:       schema.SubmissionDraft,
		SubmittedBy:  p.UserId,
		Authors:      buildAuthors(submissionId, content.Authors),
	}

	err = s.uow.Do(func(repos *repository.Repos) error {
		number, err := nextPaperNumber(repos.Txn, submission.ConferenceId)
		if err != nil {
			return err
		}
		submission.PaperNumber = number

		if err := repos.Submissions.Create(&submission); err != nil {
			return repoError(err)
		}
		return nil
	})
	if err != nil {
		writeError(w, "creating submission", err)
		return
	}

	metrics.SubmissionsCreated.Inc()

	slog.Info("submission created", "code", logging.SUBMISSION, "submission_id", submission.Id, "conference_id", submission.ConferenceId, "paper_number", submission.PaperNumber)

	utils.WriteJsonResponse(w, convertToSubmissionDetails(submission))
}

func (s *SubmissionService) Get(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "retrieving submission", err)
		return
	}

	submissionId, err := utils.URLParamUUID(r, "submission_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	submission, err := loadViewableSubmission(s.uow.DB(), p, submissionId, true, true)
	if err != nil {
		writeError(w, "retrieving submission", err)
		return
	}

	details := convertToSubmissionDetails(submission)

	users := s.users.LookupUsers(r.Context(), auth.BearerToken(r), []uuid.UUID{submission.SubmittedBy})
	if submitter, ok := users[submission.SubmittedBy]; ok {
		details.Submitter = &submitter
	}

	utils.WriteJsonResponse(w, details)
}

func (s *SubmissionService) listSubmissions(w http.ResponseWriter, r *http.Request, scopes ...repository.Scope) {
	page, err := utils.ParsePage(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if status := r.URL.Query().Get("status"); status != "" {
		if err := schema.CheckValid("status", status, schema.SubmissionStatuses); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		scopes = append(scopes, repository.Where("status = ?", status))
	}

	submissions, total, err := s.uow.Read().Submissions.List(page, scopes...)
	if err != nil {
		writeError(w, "listing submissions", repoError(err))
		return
	}

	infos := make([]SubmissionInfo, 0, len(submissions))
	for _, submission := range submissions {
		infos = append(infos, convertToSubmissionInfo(submission))
	}

	utils.WriteJsonResponse(w, utils.PagedResponse[SubmissionInfo]{Items: infos, Page: page.Page, PageSize: page.PageSize, Total: total})
}

func (s *SubmissionService) List(w http.ResponseWriter, r *http.Request) {
	conferenceId, err := utils.QueryParamUUID(r, "conferenceId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	scopes := []repository.Scope{repository.OrderBy("paper_number")}
	if conferenceId != nil {
		scopes = append(scopes, repository.Where("conference_id = ?", *conferenceId))
	}

	s.listSubmissions(w, r, scopes...)
}

func (s *SubmissionService) Mine(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "listing submissions", err)
		return
	}

	s.listSubmissions(w, r, repository.Where("submitted_by = ?", p.UserId), repository.OrderBy("created_at DESC"))
}

type updateSubmissionRequest struct {
	TrackId  optional.Value[uuid.UUID]       `json:"trackId"`
	Title    optional.Value[string]          `json:"title"`
	Abstract optional.Value[string]          `json:"abstract"`
	Keywords optional.Value[[]string]        `json:"keywords"`
	Authors  optional.Value[[]authorRequest] `json:"authors"`
}

func (req updateSubmissionRequest) nullRequired() []string {
	fields := []string{}
	if req.Title.Set && req.Title.Null {
		fields = append(fields, "title")
	}
	if req.Abstract.Set && req.Abstract.Null {
		fields = append(fields, "abstract")
	}
	if req.Authors.Set && req.Authors.Null {
		fields = append(fields, "authors")
	}
	return fields
}

// merge returns the content after the update. Authors are only compared when
// the request replaces them.
func (req updateSubmissionRequest) merge(submission schema.Submission, current []authorRequest) submissionContent {
	content := submissionContent{
		Title:    submission.Title,
		Abstract: submission.Abstract,
		Keywords: submission.Keywords,
		Authors:  current,
	}
	req.Title.Apply(&content.Title)
	req.Abstract.Apply(&content.Abstract)
	if req.Keywords.Set {
		content.Keywords = req.Keywords.Value
	}
	req.Authors.Apply(&content.Authors)

	content.Title = strings.TrimSpace(content.Title)
	content.Abstract = strings.TrimSpace(content.Abstract)
	return content
}

func authorRequests(authors []schema.Author) []authorRequest {
	requests := make([]authorRequest, 0, len(authors))
	for _, a := range authors {
		requests = append(requests, authorRequest{Name: a.Name, Email: a.Email, Affiliation: a.Affiliation, IsCorresponding: a.IsCorresponding})
	}
	return requests
}

func (s *SubmissionService) Update(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "updating submission", err)
		return
	}

	submissionId, err := utils.URLParamUUID(r, "submission_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateSubmissionRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	builder := s.validator.Builder(r)
	for _, field := range params.nullRequired() {
		builder.Add(field, validation.CodeRequired, "")
	}
	if err := builder.Err(); err != nil {
		writeError(w, "updating submission", err)
		return
	}

	submission, err := loadEditableSubmission(s.uow.DB(), p, submissionId)
	if err != nil {
		writeError(w, "updating submission", err)
		return
	}

	if params.TrackId.Present() && (submission.TrackId == nil || *submission.TrackId != params.TrackId.Value) {
		conference, err := s.fetchConference(r, submission.ConferenceId)
		if err != nil {
			writeError(w, "updating submission", err)
			return
		}
		if !conference.HasTrack(params.TrackId.Value) {
			builder.Add("trackId", validation.CodeUnknownTrack, "")
			writeError(w, "updating submission", builder.Err())
			return
		}
	}

	var updated schema.Submission
	err = s.uow.Do(func(repos *repository.Repos) error {
		submission, err := loadEditableSubmission(repos.Txn, p, submissionId)
		if err != nil {
			return err
		}

		var authors []schema.Author
		result := repos.Txn.Order("author_order").Find(&authors, "submission_id = ?", submissionId)
		if result.Error != nil {
			slog.Error("sql error loading authors", "submission_id", submissionId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		content := params.merge(submission, authorRequests(authors))
		if err := s.validateContent(r, content); err != nil {
			return err
		}

		params.TrackId.ApplyNullable(&submission.TrackId)
		submission.Title = content.Title
		submission.Abstract = content.Abstract
		submission.Keywords = content.Keywords

		// Map updates bypass the json serializer of the keywords column.
		keywords, err := json.Marshal(append([]string{}, submission.Keywords...))
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}

		err = repos.Submissions.Updates(submissionId, map[string]interface{}{
			"track_id": submission.TrackId,
			"title":    submission.Title,
			"abstract": submission.Abstract,
			"keywords": string(keywords),
		})
		if err != nil {
			return repoError(err)
		}

		if params.Authors.Present() {
			result := repos.Txn.Where("submission_id = ?", submissionId).Delete(&schema.Author{})
			if result.Error != nil {
				slog.Error("sql error removing authors", "submission_id", submissionId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
			authors = buildAuthors(submissionId, content.Authors)
			result = repos.Txn.Create(&authors)
			if result.Error != nil {
				slog.Error("sql error creating authors", "submission_id", submissionId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}

		submission.Authors = authors
		updated = submission
		return nil
	})
	if err != nil {
		writeError(w, "updating submission", err)
		return
	}

	slog.Info("submission updated", "code", logging.SUBMISSION, "submission_id", submissionId)

	utils.WriteJsonResponse(w, convertToSubmissionDetails(updated))
}

// transitionSubmission moves the submission from one status to another. The
// status is part of the update condition so a concurrent change wins.
func transitionSubmission(txn *gorm.DB, submissionId uuid.UUID, from, to string, extra map[string]interface{}) error {
	if err := schema.CheckSubmissionTransition(from, to); err != nil {
		return CodedError(err, http.StatusConflict)
	}

	values := map[string]interface{}{"status": to}
	for k, v := range extra {
		values[k] = v
	}

	result := txn.Model(&schema.Submission{}).Where("id = ? AND status = ?", submissionId, from).Updates(values)
	if result.Error != nil {
		slog.Error("sql error updating submission status", "submission_id", submissionId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	if result.RowsAffected == 0 {
		return CodedError(fmt.Errorf("submission %v was modified concurrently", submissionId), http.StatusConflict)
	}
	return nil
}

func (s *SubmissionService) Submit(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "submitting paper", err)
		return
	}

	submissionId, err := utils.URLParamUUID(r, "submission_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	submission, err := schema.GetSubmission(submissionId, s.uow.DB(), false, false)
	if err != nil {
		writeError(w, "submitting paper", repoError(err))
		return
	}
	if submission.SubmittedBy != p.UserId {
		writeError(w, "submitting paper", forbidden("only the submitter can submit paper %v", submissionId))
		return
	}
	if err := schema.CheckSubmissionTransition(submission.Status, schema.SubmissionSubmitted); err != nil {
		writeError(w, "submitting paper", CodedError(err, http.StatusConflict))
		return
	}

	conference, err := s.fetchConference(r, submission.ConferenceId)
	if err != nil {
		writeError(w, "submitting paper", err)
		return
	}
	builder := s.validator.Builder(r)
	checkDeadline(builder, conference)
	if err := builder.Err(); err != nil {
		writeError(w, "submitting paper", err)
		return
	}

	now := time.Now().UTC()
	err = s.uow.Do(func(repos *repository.Repos) error {
		return transitionSubmission(repos.Txn, submissionId, submission.Status, schema.SubmissionSubmitted, map[string]interface{}{"submitted_at": now})
	})
	if err != nil {
		writeError(w, "submitting paper", err)
		return
	}

	slog.Info("paper submitted", "code", logging.SUBMISSION, "submission_id", submissionId)

	submission.Status = schema.SubmissionSubmitted
	submission.SubmittedAt = &now
	utils.WriteJsonResponse(w, convertToSubmissionInfo(submission))
}

type withdrawRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

func (s *SubmissionService) Withdraw(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "withdrawing submission", err)
		return
	}

	submissionId, err := utils.URLParamUUID(r, "submission_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params withdrawRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if err := s.validator.Struct(r, params); err != nil {
		writeError(w, "withdrawing submission", err)
		return
	}

	var submission schema.Submission
	err = s.uow.Do(func(repos *repository.Repos) error {
		current, err := repos.Submissions.Get(submissionId)
		if err != nil {
			return repoError(err)
		}
		if current.SubmittedBy != p.UserId && !p.IsAdmin() {
			return forbidden("user %v cannot withdraw submission %v", p.UserId, submissionId)
		}

		err = transitionSubmission(repos.Txn, submissionId, current.Status, schema.SubmissionWithdrawn, map[string]interface{}{"withdraw_reason": params.Reason})
		if err != nil {
			return err
		}

		current.Status = schema.SubmissionWithdrawn
		current.WithdrawReason = params.Reason
		submission = current
		return nil
	})
	if err != nil {
		writeError(w, "withdrawing submission", err)
		return
	}

	slog.Info("submission withdrawn", "code", logging.SUBMISSION, "submission_id", submissionId, "user_id", p.UserId)

	utils.WriteJsonResponse(w, convertToSubmissionInfo(submission))
}

type submissionStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=SUBMITTED UNDER_REVIEW REVIEWED ACCEPTED REJECTED"`
}

// UpdateStatus is the chair driven path through review. Withdrawal has its
// own endpoint.
func (s *SubmissionService) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "updating submission status", err)
		return
	}

	submissionId, err := utils.URLParamUUID(r, "submission_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params submissionStatusRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if err := s.validator.Struct(r, params); err != nil {
		writeError(w, "updating submission status", err)
		return
	}

	existing, err := s.uow.Read().Submissions.Get(submissionId)
	if err != nil {
		writeError(w, "updating submission status", repoError(err))
		return
	}
	if _, err := lookupManagedConference(r, s.conferences, p, existing.ConferenceId); err != nil {
		writeError(w, "updating submission status", err)
		return
	}

	var submission schema.Submission
	err = s.uow.Do(func(repos *repository.Repos) error {
		current, err := repos.Submissions.Get(submissionId)
		if err != nil {
			return repoError(err)
		}

		if err := transitionSubmission(repos.Txn, submissionId, current.Status, params.Status, nil); err != nil {
			return err
		}

		current.Status = params.Status
		submission = current
		return nil
	})
	if err != nil {
		writeError(w, "updating submission status", err)
		return
	}

	slog.Info("submission status changed", "code", logging.SUBMISSION, "submission_id", submissionId, "status", params.Status)

	utils.WriteJsonResponse(w, convertToSubmissionInfo(submission))
}
