package schema

import (
	"fmt"
	"slices"
)

var conferenceTransitions = map[string][]string{
	ConferenceDraft:     {ConferencePublished, ConferenceCancelled},
	ConferencePublished: {ConferenceActive, ConferenceCancelled},
	ConferenceActive:    {ConferenceCompleted, ConferenceCancelled},
}

var submissionTransitions = map[string][]string{
	SubmissionDraft:       {SubmissionSubmitted, SubmissionWithdrawn},
	SubmissionSubmitted:   {SubmissionUnderReview, SubmissionWithdrawn},
	SubmissionUnderReview: {SubmissionReviewed, SubmissionAccepted, SubmissionRejected, SubmissionWithdrawn},
	SubmissionReviewed:    {SubmissionAccepted, SubmissionRejected, SubmissionWithdrawn},
}

var assignmentTransitions = map[string][]string{
	AssignmentPending:  {AssignmentAccepted, AssignmentDeclined},
	AssignmentAccepted: {AssignmentCompleted},
}

type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v cannot transition from %v to %v", e.Entity, e.From, e.To)
}

func checkTransition(entity string, table map[string][]string, from, to string) error {
	if slices.Contains(table[from], to) {
		return nil
	}
	return &TransitionError{Entity: entity, From: from, To: to}
}

func CheckConferenceTransition(from, to string) error {
	return checkTransition("conference", conferenceTransitions, from, to)
}

func CheckSubmissionTransition(from, to string) error {
	return checkTransition("submission", submissionTransitions, from, to)
}

func CheckAssignmentTransition(from, to string) error {
	return checkTransition("assignment", assignmentTransitions, from, to)
}

// IsTerminalSubmission reports whether no further status change is possible.
func IsTerminalSubmission(status string) bool {
	return len(submissionTransitions[status]) == 0
}

// IsEditableSubmission reports whether authors may still change content.
func IsEditableSubmission(status string) bool {
	return status == SubmissionDraft || status == SubmissionSubmitted
}
