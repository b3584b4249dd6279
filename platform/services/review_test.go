package services_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/events"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/services"
)

type reviewSetup struct {
	submissionSetup
	reviewer testClient
	paper    services.SubmissionDetails
}

func setupReviews(t *testing.T) reviewSetup {
	s := setupSubmissions(t)
	reviewer := s.env.newUser(t, "reviewer", schema.RoleReviewer)
	paper := createSubmission(t, s.author, submissionBody(s.conference.Id, "Fuzzing Compilers"))
	require.NoError(t, s.author.Post(fmt.Sprintf("/api/submissions/%v/submit", paper.Id)).Do(nil))
	return reviewSetup{submissionSetup: s, reviewer: reviewer, paper: paper}
}

func assign(t *testing.T, chair testClient, paperId, reviewerId uuid.UUID) (int, services.AssignmentResult) {
	var res services.AssignmentResult
	status, err := chair.Post("/api/assignment").Json(map[string]interface{}{
		"paperId": paperId, "reviewerId": reviewerId, "dueDate": daysFromNow(14),
	}).DoResult(&res)
	require.NoError(t, err)
	return status, res
}

func mustAssign(t *testing.T, chair testClient, paperId, reviewerId uuid.UUID) services.AssignmentInfo {
	status, res := assign(t, chair, paperId, reviewerId)
	require.Equal(t, http.StatusOK, status, res.Message)
	require.True(t, res.Success)
	require.NotNil(t, res.Assignment)
	return *res.Assignment
}

func respond(reviewer testClient, assignmentId uuid.UUID, accept bool, reason string) error {
	return reviewer.Post(fmt.Sprintf("/api/assignment/%v/respond", assignmentId)).Json(map[string]interface{}{
		"isAccepted": accept, "reason": reason,
	}).Do(nil)
}

func reviewBody(assignmentId uuid.UUID, overall int, recommendation string) map[string]interface{} {
	return map[string]interface{}{
		"assignmentId":         assignmentId,
		"noveltyScore":         7,
		"methodologyScore":     6,
		"presentationScore":    8,
		"overallScore":         overall,
		"commentsForAuthors":   "Solid work.",
		"confidentialComments": "Borderline novelty.",
		"recommendation":       recommendation,
	}
}

func TestAssignReviewer(t *testing.T) {
	s := setupReviews(t)

	assignment := mustAssign(t, s.chair, s.paper.Id, s.reviewer.userId)
	assert.Equal(t, schema.AssignmentPending, assignment.Status)
	assert.Equal(t, s.paper.Id, assignment.SubmissionId)
	assert.Equal(t, s.chair.userId, assignment.AssignedBy)
	assert.Equal(t, "Fuzzing Compilers", assignment.PaperTitle)
	assert.NotNil(t, assignment.DueDate)

	status, res := assign(t, s.chair, s.paper.Id, s.reviewer.userId)
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "already assigned")

	status, res = assign(t, s.chair, s.paper.Id, s.author.userId)
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, res.Success)

	status, _ = assign(t, s.chair, uuid.New(), s.reviewer.userId)
	assert.Equal(t, http.StatusNotFound, status)

	err := s.author.Post("/api/assignment").Json(map[string]interface{}{"paperId": s.paper.Id, "reviewerId": s.reviewer.userId}).Do(nil)
	assert.Equal(t, http.StatusForbidden, statusOf(err))

	var assignments []services.AssignmentInfo
	require.NoError(t, s.chair.Get(fmt.Sprintf("/api/assignment/paper/%v", s.paper.Id)).Do(&assignments))
	require.Len(t, assignments, 1)
	require.NotNil(t, assignments[0].Reviewer)
	assert.Equal(t, "reviewer@mail.com", assignments[0].Reviewer.Email)
}

func TestAssignmentNotifiesReviewer(t *testing.T) {
	s := setupReviews(t)

	mustAssign(t, s.chair, s.paper.Id, s.reviewer.userId)

	sent := s.env.mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"reviewer@mail.com"}, sent[0].To)
	assert.Equal(t, "New review assignment: Fuzzing Compilers", sent[0].Subject)
	assert.Contains(t, sent[0].HtmlBody, "Fuzzing Compilers")

	var logs []schema.EmailLog
	require.NoError(t, s.env.db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, events.TopicReviewAssigned, logs[0].EventType)
	assert.Equal(t, schema.EmailSent, logs[0].Status)
}

func TestRespondToAssignment(t *testing.T) {
	s := setupReviews(t)
	second := s.env.newUser(t, "second", schema.RoleReviewer)

	first := mustAssign(t, s.chair, s.paper.Id, s.reviewer.userId)
	other := mustAssign(t, s.chair, s.paper.Id, second.userId)

	err := respond(second, first.Id, true, "")
	assert.Equal(t, http.StatusForbidden, statusOf(err))

	err = respond(second, other.Id, false, "")
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	require.NoError(t, respond(second, other.Id, false, "conflict of interest"))
	require.NoError(t, respond(s.reviewer, first.Id, true, ""))

	err = respond(s.reviewer, first.Id, false, "changed my mind")
	assert.Equal(t, http.StatusConflict, statusOf(err))

	var assignments []services.AssignmentInfo
	require.NoError(t, s.chair.Get(fmt.Sprintf("/api/assignment/paper/%v", s.paper.Id)).Do(&assignments))
	byId := map[uuid.UUID]services.AssignmentInfo{}
	for _, a := range assignments {
		byId[a.Id] = a
	}
	assert.Equal(t, schema.AssignmentAccepted, byId[first.Id].Status)
	assert.Equal(t, schema.AssignmentDeclined, byId[other.Id].Status)
	assert.Equal(t, "conflict of interest", byId[other.Id].DeclineReason)
	assert.NotNil(t, byId[other.Id].RespondedAt)

	// A declined reviewer can be assigned again.
	mustAssign(t, s.chair, s.paper.Id, second.userId)
}

func TestSubmitReview(t *testing.T) {
	s := setupReviews(t)
	assignment := mustAssign(t, s.chair, s.paper.Id, s.reviewer.userId)

	err := s.reviewer.Post("/api/review").Json(reviewBody(assignment.Id, 80, "Accept")).Do(nil)
	assert.Equal(t, http.StatusConflict, statusOf(err))

	require.NoError(t, respond(s.reviewer, assignment.Id, true, ""))

	t.Run("Validation", func(t *testing.T) {
		body := reviewBody(assignment.Id, 101, "Accept")
		body["noveltyScore"] = 0
		err := s.reviewer.Post("/api/review").Json(body).Do(nil)
		assert.Equal(t, http.StatusBadRequest, statusOf(err))
		assert.Contains(t, err.Error(), "noveltyScore")
		assert.Contains(t, err.Error(), "overallScore")

		err = s.reviewer.Post("/api/review").Json(reviewBody(assignment.Id, 80, "Maybe")).Do(nil)
		assert.Equal(t, http.StatusBadRequest, statusOf(err))
	})

	err = s.author.Post("/api/review").Json(reviewBody(assignment.Id, 80, "Accept")).Do(nil)
	assert.Equal(t, http.StatusForbidden, statusOf(err))

	var review services.ReviewInfo
	require.NoError(t, s.reviewer.Post("/api/review").Json(reviewBody(assignment.Id, 80, "Accept")).Do(&review))
	assert.Equal(t, s.paper.Id, review.PaperId)
	assert.Equal(t, 80, review.OverallScore)
	assert.Equal(t, "Accept", review.Recommendation)

	err = s.reviewer.Post("/api/review").Json(reviewBody(assignment.Id, 60, "Reject")).Do(nil)
	assert.Equal(t, http.StatusConflict, statusOf(err))

	var updated services.ReviewInfo
	update := reviewBody(assignment.Id, 55, "Revision")
	delete(update, "assignmentId")
	require.NoError(t, s.reviewer.Put(fmt.Sprintf("/api/review/%v", review.Id)).Json(update).Do(&updated))
	assert.Equal(t, 55, updated.OverallScore)
	assert.Equal(t, "Revision", updated.Recommendation)

	err = s.author.Put(fmt.Sprintf("/api/review/%v", review.Id)).Json(update).Do(nil)
	assert.Equal(t, http.StatusForbidden, statusOf(err))

	var assigned struct {
		Items []services.AssignmentInfo `json:"items"`
		Total int64                     `json:"total"`
	}
	require.NoError(t, s.reviewer.Get(fmt.Sprintf("/api/review/assigned/%v", s.reviewer.userId)).Do(&assigned))
	require.Equal(t, int64(1), assigned.Total)
	assert.Equal(t, schema.AssignmentCompleted, assigned.Items[0].Status)
	require.NotNil(t, assigned.Items[0].ReviewId)
	assert.Equal(t, review.Id, *assigned.Items[0].ReviewId)
	assert.Equal(t, s.paper.PaperNumber, assigned.Items[0].PaperNumber)

	err = s.author.Get(fmt.Sprintf("/api/review/assigned/%v", s.reviewer.userId)).Do(nil)
	assert.Equal(t, http.StatusForbidden, statusOf(err))
	require.NoError(t, s.chair.Get(fmt.Sprintf("/api/review/assigned/%v", s.reviewer.userId)).Do(nil))
}

func TestPaperReviewsAndDecisions(t *testing.T) {
	s := setupReviews(t)
	second := s.env.newUser(t, "second", schema.RoleReviewer)

	first := mustAssign(t, s.chair, s.paper.Id, s.reviewer.userId)
	other := mustAssign(t, s.chair, s.paper.Id, second.userId)
	require.NoError(t, respond(s.reviewer, first.Id, true, ""))
	require.NoError(t, respond(second, other.Id, true, ""))

	pendingUrl := fmt.Sprintf("/api/decision/pending?conferenceId=%v", s.conference.Id)

	require.NoError(t, s.reviewer.Post("/api/review").Json(reviewBody(first.Id, 80, "Accept")).Do(nil))

	var pending []services.PendingDecision
	require.NoError(t, s.chair.Get(pendingUrl).Do(&pending))
	assert.Empty(t, pending)

	require.NoError(t, second.Post("/api/review").Json(reviewBody(other.Id, 61, "Revision")).Do(nil))

	require.NoError(t, s.chair.Get(pendingUrl).Do(&pending))
	require.Len(t, pending, 1)
	assert.Equal(t, s.paper.Id, pending[0].PaperId)
	assert.Equal(t, 2, pending[0].ReviewCount)
	assert.Equal(t, 70.5, pending[0].AverageOverallScore)

	err := s.reviewer.Get(fmt.Sprintf("/api/review/paper/%v", s.paper.Id)).Do(nil)
	assert.Equal(t, http.StatusForbidden, statusOf(err))

	var reviews services.PaperReviews
	require.NoError(t, s.chair.Get(fmt.Sprintf("/api/review/paper/%v", s.paper.Id)).Do(&reviews))
	require.Len(t, reviews.Reviews, 2)
	assert.Equal(t, 70.5, reviews.AverageOverallScore)
	assert.Equal(t, 7.0, reviews.AverageNovelty)
	assert.Equal(t, map[string]int{"Accept": 1, "Revision": 1}, reviews.RecommendationCounts)
	assert.Equal(t, "Borderline novelty.", reviews.Reviews[0].ConfidentialComments)

	err = s.chair.Get(fmt.Sprintf("/api/decision/paper/%v", s.paper.Id)).Do(nil)
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	err = s.reviewer.Post("/api/decision").Json(map[string]interface{}{"paperId": s.paper.Id, "status": "ACCEPT"}).Do(nil)
	assert.Equal(t, http.StatusForbidden, statusOf(err))

	err = s.chair.Post("/api/decision").Json(map[string]interface{}{"paperId": s.paper.Id, "status": "MAYBE"}).Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	var decision services.DecisionInfo
	require.NoError(t, s.chair.Post("/api/decision").Json(map[string]interface{}{
		"paperId": s.paper.Id, "status": "MINOR_REVISION", "comments": "Address reviewer 2",
	}).Do(&decision))
	assert.Equal(t, schema.DecisionMinorRevision, decision.Status)

	var updated services.DecisionInfo
	require.NoError(t, s.chair.Post("/api/decision").Json(map[string]interface{}{
		"paperId": s.paper.Id, "status": "ACCEPT",
	}).Do(&updated))
	assert.Equal(t, decision.Id, updated.Id)

	var fetched services.DecisionInfo
	require.NoError(t, s.chair.Get(fmt.Sprintf("/api/decision/paper/%v", s.paper.Id)).Do(&fetched))
	assert.Equal(t, schema.DecisionAccept, fetched.Status)
	require.NotNil(t, fetched.DecidedBy)
	assert.Equal(t, s.chair.userId, *fetched.DecidedBy)

	var count int64
	require.NoError(t, s.env.db.Model(&schema.Decision{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.NoError(t, s.chair.Get(pendingUrl).Do(&pending))
	assert.Empty(t, pending)

	// Decided papers close their reviews.
	reviewsByAssignment := map[uuid.UUID]uuid.UUID{}
	for _, review := range reviews.Reviews {
		reviewsByAssignment[review.AssignmentId] = review.Id
	}
	update := reviewBody(first.Id, 90, "Accept")
	delete(update, "assignmentId")
	err = s.reviewer.Put(fmt.Sprintf("/api/review/%v", reviewsByAssignment[first.Id])).Json(update).Do(nil)
	assert.Equal(t, http.StatusConflict, statusOf(err))
}

func TestReviewsOfAnotherChairsConference(t *testing.T) {
	s := setupReviews(t)
	other := s.env.newUser(t, "other", schema.RoleConferenceChair)

	status, res := assign(t, other, s.paper.Id, s.reviewer.userId)
	assert.Equal(t, http.StatusForbidden, status)
	assert.False(t, res.Success)
	assert.Nil(t, res.Assignment)

	var count int64
	require.NoError(t, s.env.db.Model(&schema.Assignment{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	assignment := mustAssign(t, s.chair, s.paper.Id, s.reviewer.userId)
	require.NoError(t, respond(s.reviewer, assignment.Id, true, ""))
	require.NoError(t, s.reviewer.Post("/api/review").Json(reviewBody(assignment.Id, 75, "Accept")).Do(nil))

	err := other.Get(fmt.Sprintf("/api/assignment/paper/%v", s.paper.Id)).Do(nil)
	assert.Equal(t, http.StatusForbidden, statusOf(err))

	err = other.Get(fmt.Sprintf("/api/review/paper/%v", s.paper.Id)).Do(nil)
	assert.Equal(t, http.StatusForbidden, statusOf(err))

	err = other.Get(fmt.Sprintf("/api/decision/pending?conferenceId=%v", s.conference.Id)).Do(nil)
	assert.Equal(t, http.StatusForbidden, statusOf(err))

	err = other.Post("/api/decision").Json(map[string]interface{}{"paperId": s.paper.Id, "status": "REJECT"}).Do(nil)
	assert.Equal(t, http.StatusForbidden, statusOf(err))

	require.NoError(t, s.env.db.Model(&schema.Decision{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	require.NoError(t, s.chair.Post("/api/decision").Json(map[string]interface{}{"paperId": s.paper.Id, "status": "ACCEPT"}).Do(nil))

	err = other.Get(fmt.Sprintf("/api/decision/paper/%v", s.paper.Id)).Do(nil)
	assert.Equal(t, http.StatusForbidden, statusOf(err))
}
