package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/client"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/auth"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/events"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/metrics"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/repository"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/validation"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils/logging"
)

// ReviewService owns reviewer assignments, reviews and final decisions. Each
// area is mounted under its own prefix.
type ReviewService struct {
	uow       *repository.UnitOfWork
	authn     *auth.Authenticator
	validator *validation.Validator
	users     client.UserDirectory
	bus       events.Publisher

	conferences client.ConferenceDirectory
}

// managedPaper loads a paper and checks that the caller manages the conference
// it was submitted to.
func (s *ReviewService) managedPaper(r *http.Request, p auth.Principal, paperId uuid.UUID) (schema.Submission, error) {
	paper, err := s.uow.Read().Submissions.Get(paperId)
	if err != nil {
		return paper, repoError(err)
	}
	if _, err := lookupManagedConference(r, s.conferences, p, paper.ConferenceId); err != nil {
		return paper, err
	}
	return paper, nil
}

func (s *ReviewService) AssignmentRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.authn.Required()...)

	r.With(auth.ChairOnly()).Post("/", s.Assign)
	r.With(auth.ChairOnly()).Get("/paper/{paper_id}", s.PaperAssignments)
	r.Post("/{assignment_id}/respond", s.RespondToAssignment)

	return r
}

func (s *ReviewService) ReviewRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.authn.Required()...)

	r.Post("/", s.SubmitReview)
	r.Put("/{review_id}", s.UpdateReview)
	r.Get("/assigned/{reviewer_id}", s.AssignedReviews)
	r.With(auth.ChairOnly()).Get("/paper/{paper_id}", s.PaperReviews)

	return r
}

func (s *ReviewService) DecisionRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.authn.Required()...)
	r.Use(auth.ChairOnly())

	r.Get("/pending", s.PendingDecisions)
	r.Post("/", s.SubmitDecision)
	r.Get("/paper/{paper_id}", s.GetDecision)

	return r
}

type AssignmentInfo struct {
	Id            uuid.UUID        `json:"id"`
	SubmissionId  uuid.UUID        `json:"paperId"`
	ReviewerId    uuid.UUID        `json:"reviewerId"`
	AssignedBy    uuid.UUID        `json:"assignedBy"`
	Status        string           `json:"status"`
	DeclineReason string           `json:"declineReason,omitempty"`
	DueDate       *time.Time       `json:"dueDate"`
	RespondedAt   *time.Time       `json:"respondedAt"`
	CreatedAt     time.Time        `json:"createdAt"`
	ReviewId      *uuid.UUID       `json:"reviewId,omitempty"`
	PaperTitle    string           `json:"paperTitle,omitempty"`
	PaperNumber   int              `json:"paperNumber,omitempty"`
	Reviewer      *client.UserInfo `json:"reviewer,omitempty"`
}

func convertToAssignmentInfo(a schema.Assignment) AssignmentInfo {
	info := AssignmentInfo{
		Id:            a.Id,
		SubmissionId:  a.SubmissionId,
		ReviewerId:    a.ReviewerId,
		AssignedBy:    a.AssignedBy,
		Status:        a.Status,
		DeclineReason: a.DeclineReason,
		DueDate:       a.DueDate,
		RespondedAt:   a.RespondedAt,
		CreatedAt:     a.CreatedAt,
	}
	if a.Review != nil {
		info.ReviewId = &a.Review.Id
	}
	return info
}

type assignReviewerRequest struct {
	PaperId    uuid.UUID  `json:"paperId" validate:"required"`
	ReviewerId uuid.UUID  `json:"reviewerId" validate:"required"`
	DueDate    *time.Time `json:"dueDate"`
}

type AssignmentResult struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Assignment *AssignmentInfo `json:"assignment,omitempty"`
}

func writeAssignmentFailure(w http.ResponseWriter, err error) {
	utils.WriteJsonStatus(w, GetResponseCode(err), AssignmentResult{Success: false, Message: err.Error()})
}

// Assign reports every failure as an AssignmentResult with success=false so
// callers can treat a duplicate assignment as an expected outcome.
func (s *ReviewService) Assign(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeAssignmentFailure(w, err)
		return
	}

	var params assignReviewerRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	builder := s.validator.Builder(r)
	if err := builder.Merge(s.validator.Struct(r, params)); err != nil {
		writeAssignmentFailure(w, CodedError(err, http.StatusInternalServerError))
		return
	}
	if params.DueDate != nil && params.DueDate.Before(time.Now().UTC()) {
		builder.Add("dueDate", validation.CodePastDate, "")
	}
	if err := builder.Err(); err != nil {
		writeAssignmentFailure(w, err)
		return
	}

	if _, err := s.managedPaper(r, p, params.PaperId); err != nil {
		writeAssignmentFailure(w, err)
		return
	}

	assignment := schema.Assignment{
		Id:           uuid.New(),
		SubmissionId: params.PaperId,
		ReviewerId:   params.ReviewerId,
		AssignedBy:   p.UserId,
		Status:       schema.AssignmentPending,
	}
	if params.DueDate != nil {
		due := params.DueDate.UTC()
		assignment.DueDate = &due
	}

	var submission schema.Submission
	err = s.uow.Do(func(repos *repository.Repos) error {
		paper, err := repos.Submissions.Get(params.PaperId)
		if err != nil {
			return repoError(err)
		}
		if paper.Status == schema.SubmissionWithdrawn || schema.IsTerminalSubmission(paper.Status) {
			return CodedError(fmt.Errorf("paper is %v and cannot be assigned", paper.Status), http.StatusConflict)
		}
		if paper.SubmittedBy == params.ReviewerId {
			return CodedError(errors.New("the submitter cannot review their own paper"), http.StatusConflict)
		}

		active, err := repos.Assignments.Exists(repository.Where(
			"submission_id = ? AND reviewer_id = ? AND status <> ?", params.PaperId, params.ReviewerId, schema.AssignmentDeclined,
		))
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if active {
			return CodedError(errors.New("reviewer is already assigned to this paper"), http.StatusConflict)
		}

		if err := repos.Assignments.Create(&assignment); err != nil {
			return repoError(err)
		}
		submission = paper
		return nil
	})
	if err != nil {
		writeAssignmentFailure(w, err)
		return
	}

	slog.Info("reviewer assigned", "code", logging.REVIEW, "assignment_id", assignment.Id, "submission_id", assignment.SubmissionId, "reviewer_id", assignment.ReviewerId)

	s.publishAssigned(r, assignment, submission)

	info := convertToAssignmentInfo(assignment)
	info.PaperTitle = submission.Title
	info.PaperNumber = submission.PaperNumber
	utils.WriteJsonResponse(w, AssignmentResult{Success: true, Message: "reviewer assigned", Assignment: &info})
}

// publishAssigned runs after commit. Failing to notify does not undo the
// assignment.
func (s *ReviewService) publishAssigned(r *http.Request, assignment schema.Assignment, submission schema.Submission) {
	event := events.ReviewAssignedEvent{
		AssignmentId: assignment.Id,
		SubmissionId: assignment.SubmissionId,
		ReviewerId:   assignment.ReviewerId,
		PaperTitle:   submission.Title,
		DueDate:      assignment.DueDate,
		AssignedAt:   assignment.CreatedAt,
	}

	users := s.users.LookupUsers(r.Context(), auth.BearerToken(r), []uuid.UUID{assignment.ReviewerId})
	if reviewer, ok := users[assignment.ReviewerId]; ok {
		event.ReviewerEmail = reviewer.Email
	}

	if err := s.bus.Publish(r.Context(), events.TopicReviewAssigned, event); err != nil {
		slog.Error("error publishing review assigned event", "code", logging.REVIEW, "assignment_id", assignment.Id, "error", err)
	}
}

func (s *ReviewService) PaperAssignments(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "listing assignments", err)
		return
	}

	paperId, err := utils.URLParamUUID(r, "paper_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := s.managedPaper(r, p, paperId); err != nil {
		writeError(w, "listing assignments", err)
		return
	}

	assignments, err := s.uow.Read().Assignments.Find(
		repository.Where("submission_id = ?", paperId), repository.Preload("Review"), repository.OrderBy("created_at"),
	)
	if err != nil {
		writeError(w, "listing assignments", repoError(err))
		return
	}

	reviewerIds := make([]uuid.UUID, 0, len(assignments))
	for _, a := range assignments {
		reviewerIds = append(reviewerIds, a.ReviewerId)
	}
	reviewers := s.users.LookupUsers(r.Context(), auth.BearerToken(r), reviewerIds)

	infos := make([]AssignmentInfo, 0, len(assignments))
	for _, a := range assignments {
		info := convertToAssignmentInfo(a)
		if reviewer, ok := reviewers[a.ReviewerId]; ok {
			info.Reviewer = &reviewer
		}
		infos = append(infos, info)
	}

	utils.WriteJsonResponse(w, infos)
}

type respondAssignmentRequest struct {
	IsAccepted *bool  `json:"isAccepted" validate:"required"`
	Reason     string `json:"reason" validate:"max=1000"`
}

func (s *ReviewService) RespondToAssignment(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "responding to assignment", err)
		return
	}

	assignmentId, err := utils.URLParamUUID(r, "assignment_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params respondAssignmentRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	builder := s.validator.Builder(r)
	if err := builder.Merge(s.validator.Struct(r, params)); err != nil {
		writeError(w, "responding to assignment", err)
		return
	}
	if params.IsAccepted != nil && !*params.IsAccepted && params.Reason == "" {
		builder.Add("reason", validation.CodeRequired, "")
	}
	if err := builder.Err(); err != nil {
		writeError(w, "responding to assignment", err)
		return
	}

	target := schema.AssignmentDeclined
	if *params.IsAccepted {
		target = schema.AssignmentAccepted
	}

	var assignment schema.Assignment
	err = s.uow.Do(func(repos *repository.Repos) error {
		current, err := repos.Assignments.Get(assignmentId)
		if err != nil {
			return repoError(err)
		}
		if current.ReviewerId != p.UserId {
			return forbidden("assignment %v belongs to another reviewer", assignmentId)
		}
		if err := schema.CheckAssignmentTransition(current.Status, target); err != nil {
			return CodedError(err, http.StatusConflict)
		}

		now := time.Now().UTC()
		values := map[string]interface{}{"status": target, "responded_at": now}
		if target == schema.AssignmentDeclined {
			values["decline_reason"] = params.Reason
		}

		result := repos.Txn.Model(&schema.Assignment{}).Where("id = ? AND status = ?", assignmentId, current.Status).Updates(values)
		if result.Error != nil {
			slog.Error("sql error updating assignment", "assignment_id", assignmentId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(fmt.Errorf("assignment %v was modified concurrently", assignmentId), http.StatusConflict)
		}

		current.Status = target
		current.RespondedAt = &now
		if target == schema.AssignmentDeclined {
			current.DeclineReason = params.Reason
		}
		assignment = current
		return nil
	})
	if err != nil {
		writeError(w, "responding to assignment", err)
		return
	}

	slog.Info("assignment answered", "code", logging.REVIEW, "assignment_id", assignmentId, "status", assignment.Status)

	utils.WriteJsonResponse(w, convertToAssignmentInfo(assignment))
}

type reviewContent struct {
	NoveltyScore         int    `json:"noveltyScore" validate:"min=1,max=10"`
	MethodologyScore     int    `json:"methodologyScore" validate:"min=1,max=10"`
	PresentationScore    int    `json:"presentationScore" validate:"min=1,max=10"`
	OverallScore         int    `json:"overallScore" validate:"min=1,max=100"`
	CommentsForAuthors   string `json:"commentsForAuthors" validate:"max=10000"`
	ConfidentialComments string `json:"confidentialComments" validate:"max=10000"`
	Recommendation       string `json:"recommendation" validate:"required,oneof=Accept Reject Revision"`
}

func (c reviewContent) applyTo(review *schema.Review) {
	review.NoveltyScore = c.NoveltyScore
	review.MethodologyScore = c.MethodologyScore
	review.PresentationScore = c.PresentationScore
	review.OverallScore = c.OverallScore
	review.CommentsForAuthors = c.CommentsForAuthors
	review.ConfidentialComments = c.ConfidentialComments
	review.Recommendation = c.Recommendation
}

type submitReviewRequest struct {
	AssignmentId         uuid.UUID `json:"assignmentId"`
	NoveltyScore         int       `json:"noveltyScore"`
	MethodologyScore     int       `json:"methodologyScore"`
	PresentationScore    int       `json:"presentationScore"`
	OverallScore         int       `json:"overallScore"`
	CommentsForAuthors   string    `json:"commentsForAuthors"`
	ConfidentialComments string    `json:"confidentialComments"`
	Recommendation       string    `json:"recommendation"`
}

func (req submitReviewRequest) content() reviewContent {
	return reviewContent{
		NoveltyScore:         req.NoveltyScore,
		MethodologyScore:     req.MethodologyScore,
		PresentationScore:    req.PresentationScore,
		OverallScore:         req.OverallScore,
		CommentsForAuthors:   req.CommentsForAuthors,
		ConfidentialComments: req.ConfidentialComments,
		Recommendation:       req.Recommendation,
	}
}

type ReviewInfo struct {
	Id                   uuid.UUID        `json:"id"`
	AssignmentId         uuid.UUID        `json:"assignmentId"`
	PaperId              uuid.UUID        `json:"paperId"`
	ReviewerId           uuid.UUID        `json:"reviewerId"`
	Reviewer             *client.UserInfo `json:"reviewer,omitempty"`
	NoveltyScore         int              `json:"noveltyScore"`
	MethodologyScore     int              `json:"methodologyScore"`
	PresentationScore    int              `json:"presentationScore"`
	OverallScore         int              `json:"overallScore"`
	CommentsForAuthors   string           `json:"commentsForAuthors"`
	ConfidentialComments string           `json:"confidentialComments"`
	Recommendation       string           `json:"recommendation"`
	SubmittedAt          time.Time        `json:"submittedAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`
}

func convertToReviewInfo(review schema.Review, assignment schema.Assignment) ReviewInfo {
	return ReviewInfo{
		Id:                   review.Id,
		AssignmentId:         assignment.Id,
		PaperId:              assignment.SubmissionId,
		ReviewerId:           assignment.ReviewerId,
		NoveltyScore:         review.NoveltyScore,
		MethodologyScore:     review.MethodologyScore,
		PresentationScore:    review.PresentationScore,
		OverallScore:         review.OverallScore,
		CommentsForAuthors:   review.CommentsForAuthors,
		ConfidentialComments: review.ConfidentialComments,
		Recommendation:       review.Recommendation,
		SubmittedAt:          review.SubmittedAt,
		UpdatedAt:            review.UpdatedAt,
	}
}

// SubmitReview creates the only review an assignment can own and completes
// the assignment. Changes after that go through UpdateReview.
func (s *ReviewService) SubmitReview(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "submitting review", err)
		return
	}

	var params submitReviewRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	builder := s.validator.Builder(r)
	if params.AssignmentId == uuid.Nil {
		builder.Add("assignmentId", validation.CodeRequired, "")
	}
	if err := builder.Merge(s.validator.Struct(r, params.content())); err != nil {
		writeError(w, "submitting review", err)
		return
	}
	if err := builder.Err(); err != nil {
		writeError(w, "submitting review", err)
		return
	}

	now := time.Now().UTC()
	review := schema.Review{Id: uuid.New(), AssignmentId: params.AssignmentId, SubmittedAt: now}
	params.content().applyTo(&review)

	var assignment schema.Assignment
	err = s.uow.Do(func(repos *repository.Repos) error {
		current, err := schema.GetAssignment(params.AssignmentId, repos.Txn, true)
		if err != nil {
			return repoError(err)
		}
		if current.ReviewerId != p.UserId {
			return forbidden("assignment %v belongs to another reviewer", params.AssignmentId)
		}
		if current.Review != nil || current.Status == schema.AssignmentCompleted {
			return CodedError(errors.New("a review was already submitted for this assignment, update it instead"), http.StatusConflict)
		}
		if current.Status != schema.AssignmentAccepted {
			return CodedError(fmt.Errorf("assignment is %v, it must be accepted before a review is submitted", current.Status), http.StatusConflict)
		}

		if err := repos.Reviews.Create(&review); err != nil {
			return repoError(err)
		}

		result := repos.Txn.Model(&schema.Assignment{}).
			Where("id = ? AND status = ?", current.Id, schema.AssignmentAccepted).
			Update("status", schema.AssignmentCompleted)
		if result.Error != nil {
			slog.Error("sql error completing assignment", "assignment_id", current.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(fmt.Errorf("assignment %v was modified concurrently", current.Id), http.StatusConflict)
		}

		assignment = current
		return nil
	})
	if err != nil {
		writeError(w, "submitting review", err)
		return
	}

	metrics.ReviewsSubmitted.Inc()

	slog.Info("review submitted", "code", logging.REVIEW, "review_id", review.Id, "assignment_id", assignment.Id)

	utils.WriteJsonResponse(w, convertToReviewInfo(review, assignment))
}

func (s *ReviewService) UpdateReview(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "updating review", err)
		return
	}

	reviewId, err := utils.URLParamUUID(r, "review_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params reviewContent
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if err := s.validator.Struct(r, params); err != nil {
		writeError(w, "updating review", err)
		return
	}

	var review schema.Review
	var assignment schema.Assignment
	err = s.uow.Do(func(repos *repository.Repos) error {
		var err error
		review, err = repos.Reviews.Get(reviewId)
		if err != nil {
			return repoError(err)
		}
		assignment, err = repos.Assignments.Get(review.AssignmentId)
		if err != nil {
			return repoError(err)
		}
		if assignment.ReviewerId != p.UserId {
			return forbidden("review %v belongs to another reviewer", reviewId)
		}

		decided, err := repos.Decisions.Exists(repository.Where("submission_id = ?", assignment.SubmissionId))
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if decided {
			return CodedError(errors.New("a decision was already made for this paper, reviews are closed"), http.StatusConflict)
		}

		params.applyTo(&review)
		if err := repos.Reviews.Save(&review); err != nil {
			return repoError(err)
		}
		return nil
	})
	if err != nil {
		writeError(w, "updating review", err)
		return
	}

	slog.Info("review updated", "code", logging.REVIEW, "review_id", reviewId)

	utils.WriteJsonResponse(w, convertToReviewInfo(review, assignment))
}

func (s *ReviewService) AssignedReviews(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "listing assignments", err)
		return
	}

	reviewerId, err := utils.URLParamUUID(r, "reviewer_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if reviewerId != p.UserId && !p.IsChair() {
		writeError(w, "listing assignments", forbidden("user %v cannot list assignments of reviewer %v", p.UserId, reviewerId))
		return
	}

	page, err := utils.ParsePage(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	scopes := []repository.Scope{
		repository.Where("reviewer_id = ?", reviewerId),
		repository.Preload("Review"),
		repository.OrderBy("created_at DESC"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		if err := schema.CheckValid("status", status, schema.AssignmentStatuses); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		scopes = append(scopes, repository.Where("status = ?", status))
	}

	assignments, total, err := s.uow.Read().Assignments.List(page, scopes...)
	if err != nil {
		writeError(w, "listing assignments", repoError(err))
		return
	}

	papers, err := loadPapers(s.uow.DB(), assignments)
	if err != nil {
		writeError(w, "listing assignments", err)
		return
	}

	infos := make([]AssignmentInfo, 0, len(assignments))
	for _, a := range assignments {
		info := convertToAssignmentInfo(a)
		if paper, ok := papers[a.SubmissionId]; ok {
			info.PaperTitle = paper.Title
			info.PaperNumber = paper.PaperNumber
		}
		infos = append(infos, info)
	}

	utils.WriteJsonResponse(w, utils.PagedResponse[AssignmentInfo]{Items: infos, Page: page.Page, PageSize: page.PageSize, Total: total})
}

func loadPapers(db *gorm.DB, assignments []schema.Assignment) (map[uuid.UUID]schema.Submission, error) {
	papers := map[uuid.UUID]schema.Submission{}
	if len(assignments) == 0 {
		return papers, nil
	}

	ids := make([]uuid.UUID, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.SubmissionId)
	}

	var submissions []schema.Submission
	result := db.Select("id", "title", "paper_number").Where("id IN ?", ids).Find(&submissions)
	if result.Error != nil {
		slog.Error("sql error loading assigned papers", "error", result.Error)
		return nil, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	for _, submission := range submissions {
		papers[submission.Id] = submission
	}
	return papers, nil
}

type PaperReviews struct {
	PaperId              uuid.UUID      `json:"paperId"`
	Reviews              []ReviewInfo   `json:"reviews"`
	AverageNovelty       float64        `json:"averageNovelty"`
	AverageMethodology   float64        `json:"averageMethodology"`
	AveragePresentation  float64        `json:"averagePresentation"`
	AverageOverallScore  float64        `json:"averageOverallScore"`
	RecommendationCounts map[string]int `json:"recommendationCounts"`
}

// PaperReviews includes confidential comments, the route is chair only.
func (s *ReviewService) PaperReviews(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "listing reviews", err)
		return
	}

	paperId, err := utils.URLParamUUID(r, "paper_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := s.managedPaper(r, p, paperId); err != nil {
		writeError(w, "listing reviews", err)
		return
	}

	assignments, err := s.uow.Read().Assignments.Find(
		repository.Where("submission_id = ?", paperId), repository.Preload("Review"), repository.OrderBy("created_at"),
	)
	if err != nil {
		writeError(w, "listing reviews", repoError(err))
		return
	}

	reviewerIds := make([]uuid.UUID, 0, len(assignments))
	for _, a := range assignments {
		if a.Review != nil {
			reviewerIds = append(reviewerIds, a.ReviewerId)
		}
	}
	reviewers := s.users.LookupUsers(r.Context(), auth.BearerToken(r), reviewerIds)

	res := PaperReviews{PaperId: paperId, Reviews: []ReviewInfo{}, RecommendationCounts: map[string]int{}}
	var novelty, methodology, presentation, overall float64
	for _, a := range assignments {
		if a.Review == nil {
			continue
		}
		info := convertToReviewInfo(*a.Review, a)
		if reviewer, ok := reviewers[a.ReviewerId]; ok {
			info.Reviewer = &reviewer
		}
		res.Reviews = append(res.Reviews, info)

		novelty += float64(a.Review.NoveltyScore)
		methodology += float64(a.Review.MethodologyScore)
		presentation += float64(a.Review.PresentationScore)
		overall += float64(a.Review.OverallScore)
		res.RecommendationCounts[a.Review.Recommendation]++
	}

	if n := float64(len(res.Reviews)); n > 0 {
		res.AverageNovelty = round2(novelty / n)
		res.AverageMethodology = round2(methodology / n)
		res.AveragePresentation = round2(presentation / n)
		res.AverageOverallScore = round2(overall / n)
	}

	utils.WriteJsonResponse(w, res)
}

type PendingDecision struct {
	PaperId             uuid.UUID `json:"paperId"`
	PaperNumber         int       `json:"paperNumber"`
	Title               string    `json:"title"`
	Status              string    `json:"status"`
	ReviewCount         int       `json:"reviewCount"`
	AverageOverallScore float64   `json:"averageOverallScore"`
}

// PendingDecisions lists papers whose reviews are all in: no decision yet, at
// least one completed assignment and none still pending or accepted.
func (s *ReviewService) PendingDecisions(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "listing pending decisions", err)
		return
	}

	conferenceId, err := utils.QueryParamUUID(r, "conferenceId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if conferenceId == nil {
		http.Error(w, "missing conferenceId query parameter", http.StatusBadRequest)
		return
	}

	if _, err := lookupManagedConference(r, s.conferences, p, *conferenceId); err != nil {
		writeError(w, "listing pending decisions", err)
		return
	}

	db := s.uow.DB()

	var submissions []schema.Submission
	result := db.
		Where("conference_id = ? AND status <> ?", *conferenceId, schema.SubmissionWithdrawn).
		Where("NOT EXISTS (SELECT 1 FROM decisions WHERE decisions.submission_id = submissions.id)").
		Order("paper_number").
		Find(&submissions)
	if result.Error != nil {
		slog.Error("sql error listing undecided submissions", "conference_id", *conferenceId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	pending := []PendingDecision{}
	if len(submissions) == 0 {
		utils.WriteJsonResponse(w, pending)
		return
	}

	ids := make([]uuid.UUID, 0, len(submissions))
	for _, submission := range submissions {
		ids = append(ids, submission.Id)
	}

	var assignments []schema.Assignment
	result = db.Preload("Review").Where("submission_id IN ?", ids).Find(&assignments)
	if result.Error != nil {
		slog.Error("sql error loading assignments for decisions", "conference_id", *conferenceId, "error", result.Error)
		http.Error(w, schema.ErrDbAccessFailed.Error(), http.StatusInternalServerError)
		return
	}

	bySubmission := map[uuid.UUID][]schema.Assignment{}
	for _, a := range assignments {
		bySubmission[a.SubmissionId] = append(bySubmission[a.SubmissionId], a)
	}

	for _, submission := range submissions {
		completed, open := 0, 0
		overall := 0.0
		for _, a := range bySubmission[submission.Id] {
			switch a.Status {
			case schema.AssignmentPending, schema.AssignmentAccepted:
				open++
			case schema.AssignmentCompleted:
				completed++
				if a.Review != nil {
					overall += float64(a.Review.OverallScore)
				}
			}
		}
		if open > 0 || completed == 0 {
			continue
		}

		pending = append(pending, PendingDecision{
			PaperId:             submission.Id,
			PaperNumber:         submission.PaperNumber,
			Title:               submission.Title,
			Status:              submission.Status,
			ReviewCount:         completed,
			AverageOverallScore: round2(overall / float64(completed)),
		})
	}

	utils.WriteJsonResponse(w, pending)
}

type DecisionInfo struct {
	Id        uuid.UUID  `json:"id"`
	PaperId   uuid.UUID  `json:"paperId"`
	Status    string     `json:"status"`
	Comments  string     `json:"comments"`
	DecidedBy *uuid.UUID `json:"decidedBy"`
	DecidedAt time.Time  `json:"decidedAt"`
}

func convertToDecisionInfo(d schema.Decision) DecisionInfo {
	return DecisionInfo{
		Id:        d.Id,
		PaperId:   d.SubmissionId,
		Status:    d.Status,
		Comments:  d.Comments,
		DecidedBy: d.DecidedBy,
		DecidedAt: d.DecidedAt,
	}
}

type decisionRequest struct {
	PaperId  uuid.UUID `json:"paperId" validate:"required"`
	Status   string    `json:"status" validate:"required,oneof=ACCEPT REJECT MAJOR_REVISION MINOR_REVISION CONDITIONAL_ACCEPT"`
	Comments string    `json:"comments" validate:"max=10000"`
}

// SubmitDecision records the chair's verdict. The submission status is left
// alone, callers move it through the submission status endpoint.
func (s *ReviewService) SubmitDecision(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "submitting decision", err)
		return
	}

	var params decisionRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if err := s.validator.Struct(r, params); err != nil {
		writeError(w, "submitting decision", err)
		return
	}

	if _, err := s.managedPaper(r, p, params.PaperId); err != nil {
		writeError(w, "submitting decision", err)
		return
	}

	var decision schema.Decision
	err = s.uow.Do(func(repos *repository.Repos) error {
		paper, err := repos.Submissions.Get(params.PaperId)
		if err != nil {
			return repoError(err)
		}
		if paper.Status == schema.SubmissionWithdrawn {
			return CodedError(errors.New("paper was withdrawn"), http.StatusConflict)
		}

		result := repos.Txn.Limit(1).Find(&decision, "submission_id = ?", params.PaperId)
		if result.Error != nil {
			slog.Error("sql error loading decision", "submission_id", params.PaperId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		exists := result.RowsAffected != 0

		decidedBy := p.UserId
		decision.SubmissionId = params.PaperId
		decision.Status = params.Status
		decision.Comments = params.Comments
		decision.DecidedBy = &decidedBy
		decision.DecidedAt = time.Now().UTC()

		if exists {
			err = repos.Decisions.Save(&decision)
		} else {
			decision.Id = uuid.New()
			err = repos.Decisions.Create(&decision)
		}
		if err != nil {
			return repoError(err)
		}
		return nil
	})
	if err != nil {
		writeError(w, "submitting decision", err)
		return
	}

	slog.Info("decision recorded", "code", logging.REVIEW, "submission_id", params.PaperId, "status", params.Status, "decided_by", p.UserId)

	utils.WriteJsonResponse(w, convertToDecisionInfo(decision))
}

func (s *ReviewService) GetDecision(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "retrieving decision", err)
		return
	}

	paperId, err := utils.URLParamUUID(r, "paper_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := s.managedPaper(r, p, paperId); err != nil {
		writeError(w, "retrieving decision", err)
		return
	}

	decisions, err := s.uow.Read().Decisions.Find(repository.Where("submission_id = ?", paperId))
	if err != nil {
		writeError(w, "retrieving decision", repoError(err))
		return
	}
	if len(decisions) == 0 {
		writeError(w, "retrieving decision", CodedError(schema.ErrDecisionNotFound, http.StatusNotFound))
		return
	}

	utils.WriteJsonResponse(w, convertToDecisionInfo(decisions[0]))
}
