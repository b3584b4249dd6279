package schema

import (
	"fmt"
	"slices"
)

const (
	RoleSystemAdmin     = "SYSTEM_ADMIN"
	RoleConferenceChair = "CONFERENCE_CHAIR"
	RoleTrackChair      = "TRACK_CHAIR"
	RolePcMember        = "PC_MEMBER"
	RoleReviewer        = "REVIEWER"
	RoleAuthor          = "AUTHOR"
)

var Roles = []string{RoleSystemAdmin, RoleConferenceChair, RoleTrackChair, RolePcMember, RoleReviewer, RoleAuthor}

const (
	ConferenceDraft     = "DRAFT"
	ConferencePublished = "PUBLISHED"
	ConferenceActive    = "ACTIVE"
	ConferenceCompleted = "COMPLETED"
	ConferenceCancelled = "CANCELLED"
)

var ConferenceStatuses = []string{ConferenceDraft, ConferencePublished, ConferenceActive, ConferenceCompleted, ConferenceCancelled}

const (
	VisibilityPrivate = "PRIVATE"
	VisibilityPublic  = "PUBLIC"
)

var Visibilities = []string{VisibilityPrivate, VisibilityPublic}

const (
	ReviewModeSingleBlind = "SINGLE_BLIND"
	ReviewModeDoubleBlind = "DOUBLE_BLIND"
	ReviewModeOpen        = "OPEN"
)

var ReviewModes = []string{ReviewModeSingleBlind, ReviewModeDoubleBlind, ReviewModeOpen}

const (
	DeadlineSubmission   = "SUBMISSION"
	DeadlineReview       = "REVIEW"
	DeadlineNotification = "NOTIFICATION"
	DeadlineCameraReady  = "CAMERA_READY"
	DeadlineRegistration = "REGISTRATION"
)

var DeadlineTypes = []string{DeadlineSubmission, DeadlineReview, DeadlineNotification, DeadlineCameraReady, DeadlineRegistration}

const (
	SubmissionDraft       = "DRAFT"
	SubmissionSubmitted   = "SUBMITTED"
	SubmissionUnderReview = "UNDER_REVIEW"
	SubmissionReviewed    = "REVIEWED"
	SubmissionAccepted    = "ACCEPTED"
	SubmissionRejected    = "REJECTED"
	SubmissionWithdrawn   = "WITHDRAWN"
)

var SubmissionStatuses = []string{
	SubmissionDraft, SubmissionSubmitted, SubmissionUnderReview, SubmissionReviewed,
	SubmissionAccepted, SubmissionRejected, SubmissionWithdrawn,
}

const (
	AssignmentPending   = "Pending"
	AssignmentAccepted  = "Accepted"
	AssignmentDeclined  = "Declined"
	AssignmentCompleted = "Completed"
)

var AssignmentStatuses = []string{AssignmentPending, AssignmentAccepted, AssignmentDeclined, AssignmentCompleted}

const (
	RecommendationAccept   = "Accept"
	RecommendationReject   = "Reject"
	RecommendationRevision = "Revision"
)

var Recommendations = []string{RecommendationAccept, RecommendationReject, RecommendationRevision}

const (
	DecisionAccept            = "ACCEPT"
	DecisionReject            = "REJECT"
	DecisionMajorRevision     = "MAJOR_REVISION"
	DecisionMinorRevision     = "MINOR_REVISION"
	DecisionConditionalAccept = "CONDITIONAL_ACCEPT"
)

var DecisionStatuses = []string{DecisionAccept, DecisionReject, DecisionMajorRevision, DecisionMinorRevision, DecisionConditionalAccept}

const (
	InvitationPending  = "Pending"
	InvitationAccepted = "Accepted"
	InvitationDeclined = "Declined"
)

var InvitationStatuses = []string{InvitationPending, InvitationAccepted, InvitationDeclined}

const (
	EmailSent   = "SENT"
	EmailFailed = "FAILED"
)

func CheckValid(kind, value string, allowed []string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("invalid %v '%v', must be one of %v", kind, value, allowed)
}
