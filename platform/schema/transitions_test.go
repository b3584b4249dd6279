package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithdrawnIsTerminal(t *testing.T) {
	assert.True(t, IsTerminalSubmission(SubmissionWithdrawn))
	for _, status := range SubmissionStatuses {
		err := CheckSubmissionTransition(SubmissionWithdrawn, status)
		assert.Error(t, err, "withdrawn -> %v should be rejected", status)
	}
}

func TestSubmissionTransitions(t *testing.T) {
	assert.NoError(t, CheckSubmissionTransition(SubmissionDraft, SubmissionSubmitted))
	assert.NoError(t, CheckSubmissionTransition(SubmissionUnderReview, SubmissionAccepted))
	assert.NoError(t, CheckSubmissionTransition(SubmissionReviewed, SubmissionWithdrawn))
	assert.Error(t, CheckSubmissionTransition(SubmissionAccepted, SubmissionWithdrawn))
	assert.Error(t, CheckSubmissionTransition(SubmissionDraft, SubmissionAccepted))

	var terr *TransitionError
	err := CheckSubmissionTransition(SubmissionRejected, SubmissionDraft)
	assert.True(t, errors.As(err, &terr))
	assert.Equal(t, SubmissionRejected, terr.From)
}

func TestConferenceTransitions(t *testing.T) {
	assert.NoError(t, CheckConferenceTransition(ConferenceDraft, ConferencePublished))
	assert.NoError(t, CheckConferenceTransition(ConferenceActive, ConferenceCancelled))
	assert.Error(t, CheckConferenceTransition(ConferenceCompleted, ConferenceCancelled))
	assert.Error(t, CheckConferenceTransition(ConferenceDraft, ConferenceActive))
}

func TestAssignmentTransitions(t *testing.T) {
	assert.NoError(t, CheckAssignmentTransition(AssignmentPending, AssignmentDeclined))
	assert.NoError(t, CheckAssignmentTransition(AssignmentAccepted, AssignmentCompleted))
	assert.Error(t, CheckAssignmentTransition(AssignmentDeclined, AssignmentAccepted))
	assert.Error(t, CheckAssignmentTransition(AssignmentPending, AssignmentCompleted))
}

func TestCheckValid(t *testing.T) {
	assert.NoError(t, CheckValid("role", RoleReviewer, Roles))
	assert.Error(t, CheckValid("role", "GUEST", Roles))
}
