package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/client"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/auth"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/cache"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/repository"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/validation"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils/logging"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils/optional"
)

type ConferenceService struct {
	uow       *repository.UnitOfWork
	authn     *auth.Authenticator
	validator *validation.Validator
	cache     cache.Cache
	cacheTtl  time.Duration
	users     client.UserDirectory
	maxTopics int
}

func (s *ConferenceService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.authn.Optional()...)

		r.Get("/", s.List)
		r.Get("/{conference_id}", s.Get)
		r.Get("/{conference_id}/call-for-papers", s.GetCallForPapers)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authn.Required()...)
		r.Use(auth.RequireRole(schema.RoleConferenceChair))

		r.Post("/", s.Create)
		r.Put("/{conference_id}", s.Update)
		r.Delete("/{conference_id}", s.Delete)
		r.Put("/{conference_id}/call-for-papers", s.UpdateCallForPapers)
		r.Post("/{conference_id}/tracks", s.AddTrack)
		r.Post("/{conference_id}/deadlines", s.AddDeadline)
		r.Post("/{conference_id}/status", s.UpdateStatus)
	})

	return r
}

type TrackInfo struct {
	Id          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

type DeadlineInfo struct {
	Id          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
}

type CallForPapersInfo struct {
	ConferenceId uuid.UUID  `json:"conferenceId"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Guidelines   string     `json:"guidelines"`
	IsPublished  bool       `json:"isPublished"`
	PublishedAt  *time.Time `json:"publishedAt"`
	Topics       []string   `json:"topics"`
}

type ConferenceInfo struct {
	Id          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Acronym     string    `json:"acronym"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	Status      string    `json:"status"`
	Visibility  string    `json:"visibility"`
	ReviewMode  string    `json:"reviewMode"`
	CreatedBy   uuid.UUID `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ConferenceDetails struct {
	ConferenceInfo
	Creator       *client.UserInfo   `json:"creator,omitempty"`
	Tracks        []TrackInfo        `json:"tracks"`
	Topics        []string           `json:"topics"`
	Deadlines     []DeadlineInfo     `json:"deadlines"`
	CallForPapers *CallForPapersInfo `json:"callForPapers"`
}

func convertToConferenceInfo(c schema.Conference) ConferenceInfo {
	return ConferenceInfo{
		Id:          c.Id,
		Name:        c.Name,
		Acronym:     c.Acronym,
		Description: c.Description,
		Location:    c.Location,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
		Status:      c.Status,
		Visibility:  c.Visibility,
		ReviewMode:  c.ReviewMode,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
	}
}

func topicNames(topics []schema.Topic) []string {
	names := make([]string, 0, len(topics))
	for _, topic := range topics {
		names = append(names, topic.Name)
	}
	return names
}

func convertToConferenceDetails(c schema.Conference) ConferenceDetails {
	details := ConferenceDetails{
		ConferenceInfo: convertToConferenceInfo(c),
		Tracks:         make([]TrackInfo, 0, len(c.Tracks)),
		Topics:         topicNames(c.Topics),
		Deadlines:      make([]DeadlineInfo, 0, len(c.Deadlines)),
	}
	for _, track := range c.Tracks {
		details.Tracks = append(details.Tracks, TrackInfo{Id: track.Id, Name: track.Name, Description: track.Description})
	}
	for _, deadline := range c.Deadlines {
		details.Deadlines = append(details.Deadlines, DeadlineInfo{
			Id: deadline.Id, Type: deadline.Type, Date: deadline.Date, Description: deadline.Description,
		})
	}
	if cfp := c.CallForPapers; cfp != nil {
		details.CallForPapers = &CallForPapersInfo{
			ConferenceId: c.Id,
			Title:        cfp.Title,
			Description:  cfp.Description,
			Guidelines:   cfp.Guidelines,
			IsPublished:  cfp.IsPublished,
			PublishedAt:  cfp.PublishedAt,
			Topics:       details.Topics,
		}
	}
	return details
}

func conferenceCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("conference:%v", id)
}

// loadDetails reads the conference with its children through the cache.
// Cache failures only cost a database read.
func (s *ConferenceService) loadDetails(ctx context.Context, id uuid.UUID) (ConferenceDetails, error) {
	var details ConferenceDetails
	key := conferenceCacheKey(id)

	found, err := s.cache.Get(ctx, key, &details)
	if err != nil {
		slog.Warn("error reading conference from cache", "conference_id", id, "error", err)
	}
	if found {
		return details, nil
	}

	conference, err := schema.GetConference(id, s.uow.DB(), true)
	if err != nil {
		return details, repoError(err)
	}
	details = convertToConferenceDetails(conference)

	if err := s.cache.Set(ctx, key, details, s.cacheTtl); err != nil {
		slog.Warn("error caching conference", "conference_id", id, "error", err)
	}
	return details, nil
}

func (s *ConferenceService) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.cache.Delete(ctx, conferenceCacheKey(id)); err != nil {
		slog.Warn("error invalidating cached conference", "conference_id", id, "error", err)
	}
}

func canManageConference(p auth.Principal, createdBy uuid.UUID) bool {
	return p.IsAdmin() || p.UserId == createdBy
}

// loadManagedConference fetches the conference inside txn and checks that the
// caller may change it.
func loadManagedConference(txn *gorm.DB, p auth.Principal, id uuid.UUID) (schema.Conference, error) {
	conference, err := schema.GetConference(id, txn, false)
	if err != nil {
		return conference, repoError(err)
	}
	if !canManageConference(p, conference.CreatedBy) {
		return conference, forbidden("user %v cannot manage conference %v", p.UserId, id)
	}
	return conference, nil
}

func (s *ConferenceService) List(w http.ResponseWriter, r *http.Request) {
	page, err := utils.ParsePage(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	scopes := []repository.Scope{repository.OrderBy("start_date, name")}

	if status := r.URL.Query().Get("status"); status != "" {
		if err := schema.CheckValid("status", status, schema.ConferenceStatuses); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		scopes = append(scopes, repository.Where("status = ?", status))
	}
	if visibility := r.URL.Query().Get("visibility"); visibility != "" {
		if err := schema.CheckValid("visibility", visibility, schema.Visibilities); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		scopes = append(scopes, repository.Where("visibility = ?", visibility))
	}

	if p, err := auth.PrincipalFromContext(r); err != nil || !p.IsChair() {
		scopes = append(scopes, repository.Where("visibility = ? AND status <> ?", schema.VisibilityPublic, schema.ConferenceDraft))
	}

	conferences, total, err := s.uow.Read().Conferences.List(page, scopes...)
	if err != nil {
		writeError(w, "listing conferences", repoError(err))
		return
	}

	infos := make([]ConferenceInfo, 0, len(conferences))
	for _, conference := range conferences {
		infos = append(infos, convertToConferenceInfo(conference))
	}

	utils.WriteJsonResponse(w, utils.PagedResponse[ConferenceInfo]{Items: infos, Page: page.Page, PageSize: page.PageSize, Total: total})
}

// isListed reports whether a conference shows up for callers who are not
// chairs. Drafts and private conferences are unlisted.
func isListed(c ConferenceInfo) bool {
	return c.Visibility == schema.VisibilityPublic && c.Status != schema.ConferenceDraft
}

// callerCanManage reports whether an optional principal may see unpublished
// parts of the conference.
func callerCanManage(r *http.Request, createdBy uuid.UUID) bool {
	p, err := auth.PrincipalFromContext(r)
	return err == nil && canManageConference(p, createdBy)
}

func (s *ConferenceService) Get(w http.ResponseWriter, r *http.Request) {
	conferenceId, err := utils.URLParamUUID(r, "conference_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	details, err := s.loadDetails(r.Context(), conferenceId)
	if err != nil {
		writeError(w, "retrieving conference", err)
		return
	}

	// Unlisted conferences stay reachable by id for signed in users, authors
	// need them to submit. Anonymous callers only see listed ones.
	if _, err := auth.PrincipalFromContext(r); err != nil && !isListed(details.ConferenceInfo) {
		writeError(w, "retrieving conference", CodedError(schema.ErrConferenceNotFound, http.StatusNotFound))
		return
	}

	if details.CallForPapers != nil && !details.CallForPapers.IsPublished && !callerCanManage(r, details.CreatedBy) {
		details.CallForPapers = nil
	}

	// The identity batch endpoint needs a token, anonymous callers get no
	// creator display info.
	if token := auth.BearerToken(r); token != "" {
		users := s.users.LookupUsers(r.Context(), token, []uuid.UUID{details.CreatedBy})
		if creator, ok := users[details.CreatedBy]; ok {
			details.Creator = &creator
		}
	}

	utils.WriteJsonResponse(w, details)
}

type conferenceFields struct {
	Name        string    `json:"name" validate:"required,max=200"`
	Acronym     string    `json:"acronym" validate:"required,max=20,acronym"`
	Description string    `json:"description" validate:"max=5000"`
	Location    string    `json:"location" validate:"max=300"`
	StartDate   time.Time `json:"startDate" validate:"required"`
	EndDate     time.Time `json:"endDate" validate:"required"`
	Visibility  string    `json:"visibility" validate:"oneof=PRIVATE PUBLIC"`
	ReviewMode  string    `json:"reviewMode" validate:"oneof=SINGLE_BLIND DOUBLE_BLIND OPEN"`
}

func fieldsOf(c schema.Conference) conferenceFields {
	return conferenceFields{
		Name:        c.Name,
		Acronym:     c.Acronym,
		Description: c.Description,
		Location:    c.Location,
		StartDate:   c.StartDate,
		EndDate:     c.EndDate,
		Visibility:  c.Visibility,
		ReviewMode:  c.ReviewMode,
	}
}

type createConferenceRequest struct {
	Name               string     `json:"name"`
	Acronym            string     `json:"acronym"`
	Description        string     `json:"description"`
	Location           string     `json:"location"`
	StartDate          time.Time  `json:"startDate"`
	EndDate            time.Time  `json:"endDate"`
	Visibility         string     `json:"visibility"`
	ReviewMode         string     `json:"reviewMode"`
	SubmissionDeadline *time.Time `json:"submissionDeadline"`
}

func (req createConferenceRequest) toConference(createdBy uuid.UUID) schema.Conference {
	conference := schema.Conference{
		Id:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		Acronym:     strings.TrimSpace(req.Acronym),
		Description: req.Description,
		Location:    req.Location,
		StartDate:   req.StartDate.UTC(),
		EndDate:     req.EndDate.UTC(),
		Status:      schema.ConferenceDraft,
		Visibility:  req.Visibility,
		ReviewMode:  req.ReviewMode,
		CreatedBy:   createdBy,
	}
	if conference.Visibility == "" {
		conference.Visibility = schema.VisibilityPrivate
	}
	if conference.ReviewMode == "" {
		conference.ReviewMode = schema.ReviewModeDoubleBlind
	}
	if req.SubmissionDeadline != nil {
		conference.Deadlines = []schema.Deadline{{
			Id:           uuid.New(),
			ConferenceId: conference.Id,
			Type:         schema.DeadlineSubmission,
			Date:         req.SubmissionDeadline.UTC(),
			Description:  "Paper submission deadline",
		}}
	}
	return conference
}

// validateConference runs the field rules plus the date checks. The past date
// check only applies when the start date is being set.
func (s *ConferenceService) validateConference(r *http.Request, fields conferenceFields, checkPast bool, submissionDeadline *time.Time) error {
	builder := s.validator.Builder(r)
	if err := builder.Merge(s.validator.Struct(r, fields)); err != nil {
		return err
	}

	if !fields.StartDate.IsZero() && !fields.EndDate.IsZero() && fields.EndDate.Before(fields.StartDate) {
		builder.Add("endDate", validation.CodeDateOrder, "")
	}
	if checkPast && !fields.StartDate.IsZero() && fields.StartDate.Before(time.Now().UTC()) {
		builder.Add("startDate", validation.CodePastDate, "")
	}
	if submissionDeadline != nil && !fields.StartDate.IsZero() && !submissionDeadline.Before(fields.StartDate) {
		builder.Add("submissionDeadline", validation.CodeDeadlineAfterStart, "")
	}

	return builder.Err()
}

// checkUniqueConference reports a duplicate name or acronym as field errors
// with a conflict status.
func (s *ConferenceService) checkUniqueConference(r *http.Request, repos *repository.Repos, conference schema.Conference) error {
	builder := s.validator.Builder(r)

	nameTaken, err := repos.Conferences.Exists(repository.Where("LOWER(name) = LOWER(?) AND id <> ?", conference.Name, conference.Id))
	if err != nil {
		return CodedError(err, http.StatusInternalServerError)
	}
	if nameTaken {
		builder.Add("name", validation.CodeDuplicate, conference.Name)
	}

	acronymTaken, err := repos.Conferences.Exists(repository.Where("LOWER(acronym) = LOWER(?) AND id <> ?", conference.Acronym, conference.Id))
	if err != nil {
		return CodedError(err, http.StatusInternalServerError)
	}
	if acronymTaken {
		builder.Add("acronym", validation.CodeDuplicate, conference.Acronym)
	}

	if err := builder.Err(); err != nil {
		return CodedError(err, http.StatusConflict)
	}
	return nil
}

type CreateConferenceResult struct {
	Success    bool                    `json:"success"`
	Message    string                  `json:"message"`
	Errors     []validation.FieldError `json:"errors,omitempty"`
	Conference *ConferenceInfo         `json:"conference,omitempty"`
}

func failedCreateResult(err error) CreateConferenceResult {
	result := CreateConferenceResult{Success: false, Message: err.Error()}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		messages := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			messages = append(messages, fe.Message)
		}
		result.Message = strings.Join(messages, "; ")
		result.Errors = verrs
	}
	return result
}

// Create answers domain failures with a typed result carrying success=false
// and the matching status instead of a plain error body.
func (s *ConferenceService) Create(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "creating conference", err)
		return
	}

	var params createConferenceRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	conference := params.toConference(p.UserId)

	if err := s.validateConference(r, fieldsOf(conference), true, params.SubmissionDeadline); err != nil {
		utils.WriteJsonStatus(w, GetResponseCode(err), failedCreateResult(err))
		return
	}

	err = s.uow.Do(func(repos *repository.Repos) error {
		if err := s.checkUniqueConference(r, repos, conference); err != nil {
			return err
		}
		if err := repos.Conferences.Create(&conference); err != nil {
			return repoError(err)
		}
		return nil
	})
	if err != nil {
		utils.WriteJsonStatus(w, GetResponseCode(err), failedCreateResult(err))
		return
	}

	slog.Info("conference created", "code", logging.CONFERENCE, "conference_id", conference.Id, "acronym", conference.Acronym, "created_by", p.UserId)

	info := convertToConferenceInfo(conference)
	utils.WriteJsonResponse(w, CreateConferenceResult{Success: true, Message: "conference created", Conference: &info})
}

type updateConferenceRequest struct {
	Name        optional.Value[string]    `json:"name"`
	Acronym     optional.Value[string]    `json:"acronym"`
	Description optional.Value[string]    `json:"description"`
	Location    optional.Value[string]    `json:"location"`
	StartDate   optional.Value[time.Time] `json:"startDate"`
	EndDate     optional.Value[time.Time] `json:"endDate"`
	Visibility  optional.Value[string]    `json:"visibility"`
	ReviewMode  optional.Value[string]    `json:"reviewMode"`
}

// nullRequired lists required fields sent as explicit nulls.
func (req updateConferenceRequest) nullRequired() []string {
	fields := []string{}
	add := func(name string, set, null bool) {
		if set && null {
			fields = append(fields, name)
		}
	}
	add("name", req.Name.Set, req.Name.Null)
	add("acronym", req.Acronym.Set, req.Acronym.Null)
	add("startDate", req.StartDate.Set, req.StartDate.Null)
	add("endDate", req.EndDate.Set, req.EndDate.Null)
	add("visibility", req.Visibility.Set, req.Visibility.Null)
	add("reviewMode", req.ReviewMode.Set, req.ReviewMode.Null)
	return fields
}

// apply merges the request into c. Description and location are cleared by an
// explicit null, required fields are only overwritten by values.
func (req updateConferenceRequest) apply(c *schema.Conference) {
	req.Name.Apply(&c.Name)
	req.Acronym.Apply(&c.Acronym)
	if req.Description.Set {
		c.Description = req.Description.Value
	}
	if req.Location.Set {
		c.Location = req.Location.Value
	}
	req.StartDate.Apply(&c.StartDate)
	req.EndDate.Apply(&c.EndDate)
	req.Visibility.Apply(&c.Visibility)
	req.ReviewMode.Apply(&c.ReviewMode)

	c.Name = strings.TrimSpace(c.Name)
	c.Acronym = strings.TrimSpace(c.Acronym)
	c.StartDate = c.StartDate.UTC()
	c.EndDate = c.EndDate.UTC()
}

func (s *ConferenceService) Update(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "updating conference", err)
		return
	}

	conferenceId, err := utils.URLParamUUID(r, "conference_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateConferenceRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if nulls := params.nullRequired(); len(nulls) > 0 {
		builder := s.validator.Builder(r)
		for _, field := range nulls {
			builder.Add(field, validation.CodeRequired, "")
		}
		writeError(w, "updating conference", builder.Err())
		return
	}

	var updated schema.Conference
	err = s.uow.Do(func(repos *repository.Repos) error {
		conference, err := loadManagedConference(repos.Txn, p, conferenceId)
		if err != nil {
			return err
		}

		params.apply(&conference)

		var submissionDeadline *time.Time
		if params.StartDate.Present() {
			deadlines, err := repos.Deadlines.Find(repository.Where("conference_id = ? AND type = ?", conferenceId, schema.DeadlineSubmission))
			if err != nil {
				return CodedError(err, http.StatusInternalServerError)
			}
			if len(deadlines) > 0 {
				submissionDeadline = &deadlines[0].Date
			}
		}

		if err := s.validateConference(r, fieldsOf(conference), params.StartDate.Present(), submissionDeadline); err != nil {
			return err
		}
		if err := s.checkUniqueConference(r, repos, conference); err != nil {
			return err
		}

		err = repos.Conferences.Updates(conferenceId, map[string]interface{}{
			"name":        conference.Name,
			"acronym":     conference.Acronym,
			"description": conference.Description,
			"location":    conference.Location,
			"start_date":  conference.StartDate,
			"end_date":    conference.EndDate,
			"visibility":  conference.Visibility,
			"review_mode": conference.ReviewMode,
		})
		if err != nil {
			return repoError(err)
		}

		updated = conference
		return nil
	})
	if err != nil {
		writeError(w, "updating conference", err)
		return
	}

	s.invalidate(r.Context(), conferenceId)

	slog.Info("conference updated", "code", logging.CONFERENCE, "conference_id", conferenceId, "user_id", p.UserId)

	utils.WriteJsonResponse(w, convertToConferenceInfo(updated))
}

func (s *ConferenceService) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "deleting conference", err)
		return
	}

	conferenceId, err := utils.URLParamUUID(r, "conference_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.uow.Do(func(repos *repository.Repos) error {
		if _, err := loadManagedConference(repos.Txn, p, conferenceId); err != nil {
			return err
		}
		if err := repos.Conferences.Delete(conferenceId); err != nil {
			return repoError(err)
		}
		return nil
	})
	if err != nil {
		writeError(w, "deleting conference", err)
		return
	}

	s.invalidate(r.Context(), conferenceId)

	slog.Info("conference deleted", "code", logging.CONFERENCE, "conference_id", conferenceId, "user_id", p.UserId)

	utils.WriteSuccess(w)
}

func (s *ConferenceService) GetCallForPapers(w http.ResponseWriter, r *http.Request) {
	conferenceId, err := utils.URLParamUUID(r, "conference_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	details, err := s.loadDetails(r.Context(), conferenceId)
	if err != nil {
		writeError(w, "retrieving call for papers", err)
		return
	}

	cfp := details.CallForPapers
	if cfp == nil || (!cfp.IsPublished && !callerCanManage(r, details.CreatedBy)) {
		writeError(w, "retrieving call for papers", CodedError(schema.ErrCallForPapersNotFound, http.StatusNotFound))
		return
	}

	utils.WriteJsonResponse(w, cfp)
}

type callForPapersRequest struct {
	Title       string   `json:"title" validate:"max=300"`
	Description string   `json:"description" validate:"max=10000"`
	Guidelines  string   `json:"guidelines" validate:"max=10000"`
	IsPublished bool     `json:"isPublished"`
	Topics      []string `json:"topics" validate:"dive,required,max=200"`
}

func (s *ConferenceService) validateCallForPapers(r *http.Request, params callForPapersRequest) error {
	builder := s.validator.Builder(r)
	if err := builder.Merge(s.validator.Struct(r, params)); err != nil {
		return err
	}

	if len(params.Topics) > s.maxTopics {
		builder.Add("topics", validation.CodeTooMany, fmt.Sprint(s.maxTopics))
	}
	seen := make(map[string]bool, len(params.Topics))
	for _, topic := range params.Topics {
		key := strings.ToLower(strings.TrimSpace(topic))
		if seen[key] {
			builder.Add("topics", validation.CodeUniqueItems, "")
			break
		}
		seen[key] = true
	}

	return builder.Err()
}

func (s *ConferenceService) UpdateCallForPapers(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "updating call for papers", err)
		return
	}

	conferenceId, err := utils.URLParamUUID(r, "conference_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params callForPapersRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := s.validateCallForPapers(r, params); err != nil {
		writeError(w, "updating call for papers", err)
		return
	}

	var cfp schema.CallForPapers
	err = s.uow.Do(func(repos *repository.Repos) error {
		if _, err := loadManagedConference(repos.Txn, p, conferenceId); err != nil {
			return err
		}

		result := repos.Txn.Limit(1).Find(&cfp, "conference_id = ?", conferenceId)
		if result.Error != nil {
			slog.Error("sql error loading call for papers", "conference_id", conferenceId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		exists := result.RowsAffected != 0

		wasPublished := cfp.IsPublished
		cfp.ConferenceId = conferenceId
		cfp.Title = params.Title
		cfp.Description = params.Description
		cfp.Guidelines = params.Guidelines
		cfp.IsPublished = params.IsPublished
		switch {
		case params.IsPublished && !wasPublished:
			now := time.Now().UTC()
			cfp.PublishedAt = &now
		case !params.IsPublished:
			cfp.PublishedAt = nil
		}

		if exists {
			result = repos.Txn.Save(&cfp)
		} else {
			result = repos.Txn.Create(&cfp)
		}
		if result.Error != nil {
			slog.Error("sql error saving call for papers", "conference_id", conferenceId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = repos.Txn.Where("conference_id = ?", conferenceId).Delete(&schema.Topic{})
		if result.Error != nil {
			slog.Error("sql error clearing topics", "conference_id", conferenceId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if len(params.Topics) > 0 {
			topics := make([]schema.Topic, 0, len(params.Topics))
			for _, name := range params.Topics {
				topics = append(topics, schema.Topic{Id: uuid.New(), ConferenceId: conferenceId, Name: strings.TrimSpace(name)})
			}
			result = repos.Txn.Create(&topics)
			if result.Error != nil {
				slog.Error("sql error creating topics", "conference_id", conferenceId, "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}
		return nil
	})
	if err != nil {
		writeError(w, "updating call for papers", err)
		return
	}

	s.invalidate(r.Context(), conferenceId)

	slog.Info("call for papers updated", "code", logging.CONFERENCE, "conference_id", conferenceId, "published", cfp.IsPublished)

	topics := make([]string, 0, len(params.Topics))
	for _, topic := range params.Topics {
		topics = append(topics, strings.TrimSpace(topic))
	}
	utils.WriteJsonResponse(w, CallForPapersInfo{
		ConferenceId: conferenceId,
		Title:        cfp.Title,
		Description:  cfp.Description,
		Guidelines:   cfp.Guidelines,
		IsPublished:  cfp.IsPublished,
		PublishedAt:  cfp.PublishedAt,
		Topics:       topics,
	})
}

type addTrackRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

func (s *ConferenceService) AddTrack(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "adding track", err)
		return
	}

	conferenceId, err := utils.URLParamUUID(r, "conference_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params addTrackRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	params.Name = strings.TrimSpace(params.Name)

	if err := s.validator.Struct(r, params); err != nil {
		writeError(w, "adding track", err)
		return
	}

	track := schema.Track{Id: uuid.New(), ConferenceId: conferenceId, Name: params.Name, Description: params.Description}

	err = s.uow.Do(func(repos *repository.Repos) error {
		if _, err := loadManagedConference(repos.Txn, p, conferenceId); err != nil {
			return err
		}

		exists, err := repos.Tracks.Exists(repository.Where("conference_id = ? AND LOWER(name) = LOWER(?)", conferenceId, params.Name))
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if exists {
			builder := s.validator.Builder(r)
			builder.Add("name", validation.CodeDuplicate, params.Name)
			return CodedError(builder.Err(), http.StatusConflict)
		}

		if err := repos.Tracks.Create(&track); err != nil {
			return repoError(err)
		}
		return nil
	})
	if err != nil {
		writeError(w, "adding track", err)
		return
	}

	s.invalidate(r.Context(), conferenceId)

	slog.Info("track added", "code", logging.CONFERENCE, "conference_id", conferenceId, "track_id", track.Id)

	utils.WriteJsonResponse(w, TrackInfo{Id: track.Id, Name: track.Name, Description: track.Description})
}

type addDeadlineRequest struct {
	Type        string    `json:"type" validate:"required,oneof=SUBMISSION REVIEW NOTIFICATION CAMERA_READY REGISTRATION"`
	Date        time.Time `json:"date" validate:"required"`
	Description string    `json:"description" validate:"max=500"`
}

func (s *ConferenceService) AddDeadline(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "adding deadline", err)
		return
	}

	conferenceId, err := utils.URLParamUUID(r, "conference_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params addDeadlineRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := s.validator.Struct(r, params); err != nil {
		writeError(w, "adding deadline", err)
		return
	}

	deadline := schema.Deadline{
		Id:           uuid.New(),
		ConferenceId: conferenceId,
		Type:         params.Type,
		Date:         params.Date.UTC(),
		Description:  params.Description,
	}

	err = s.uow.Do(func(repos *repository.Repos) error {
		conference, err := loadManagedConference(repos.Txn, p, conferenceId)
		if err != nil {
			return err
		}

		if deadline.Type == schema.DeadlineSubmission && !deadline.Date.Before(conference.StartDate) {
			builder := s.validator.Builder(r)
			builder.Add("date", validation.CodeDeadlineAfterStart, "")
			return builder.Err()
		}

		exists, err := repos.Deadlines.Exists(repository.Where("conference_id = ? AND type = ?", conferenceId, deadline.Type))
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if exists {
			builder := s.validator.Builder(r)
			builder.Add("type", validation.CodeDuplicate, deadline.Type)
			return CodedError(builder.Err(), http.StatusConflict)
		}

		if err := repos.Deadlines.Create(&deadline); err != nil {
			return repoError(err)
		}
		return nil
	})
	if err != nil {
		writeError(w, "adding deadline", err)
		return
	}

	s.invalidate(r.Context(), conferenceId)

	slog.Info("deadline added", "code", logging.CONFERENCE, "conference_id", conferenceId, "type", deadline.Type)

	utils.WriteJsonResponse(w, DeadlineInfo{Id: deadline.Id, Type: deadline.Type, Date: deadline.Date, Description: deadline.Description})
}

type conferenceStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=DRAFT PUBLISHED ACTIVE COMPLETED CANCELLED"`
}

func (s *ConferenceService) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "updating conference status", err)
		return
	}

	conferenceId, err := utils.URLParamUUID(r, "conference_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params conferenceStatusRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := s.validator.Struct(r, params); err != nil {
		writeError(w, "updating conference status", err)
		return
	}

	var conference schema.Conference
	err = s.uow.Do(func(repos *repository.Repos) error {
		current, err := loadManagedConference(repos.Txn, p, conferenceId)
		if err != nil {
			return err
		}
		conference = current

		if err := schema.CheckConferenceTransition(conference.Status, params.Status); err != nil {
			return CodedError(err, http.StatusConflict)
		}

		if err := repos.Conferences.Updates(conferenceId, map[string]interface{}{"status": params.Status}); err != nil {
			return repoError(err)
		}
		conference.Status = params.Status
		return nil
	})
	if err != nil {
		writeError(w, "updating conference status", err)
		return
	}

	s.invalidate(r.Context(), conferenceId)

	slog.Info("conference status changed", "code", logging.CONFERENCE, "conference_id", conferenceId, "status", params.Status)

	utils.WriteJsonResponse(w, convertToConferenceInfo(conference))
}
