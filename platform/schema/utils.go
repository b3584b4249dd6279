package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrConferenceNotFound = errors.New("conference not found")
	ErrTrackNotFound      = errors.New("track not found")
	ErrDeadlineNotFound   = errors.New("deadline not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrFileNotFound       = errors.New("submission file not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrReviewNotFound     = errors.New("review not found")
	ErrDecisionNotFound   = errors.New("decision not found")
	ErrInvitationNotFound = errors.New("invitation not found")

	ErrCallForPapersNotFound = errors.New("call for papers not found")
	ErrDbAccessFailed        = errors.New("db access failed")
)

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.Preload("Roles").First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetConference(conferenceId uuid.UUID, db *gorm.DB, loadDetails bool) (Conference, error) {
	var conference Conference

	query := db
	if loadDetails {
		query = query.
			Preload("Tracks", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
			Preload("Topics", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
			Preload("Deadlines", func(db *gorm.DB) *gorm.DB { return db.Order("date") }).
			Preload("CallForPapers")
	}

	result := query.First(&conference, "id = ?", conferenceId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return conference, ErrConferenceNotFound
		}
		slog.Error("sql error in get conference", "conference_id", conferenceId, "error", result.Error)
		return conference, ErrDbAccessFailed
	}

	return conference, nil
}

func GetTrack(conferenceId, trackId uuid.UUID, db *gorm.DB) (Track, error) {
	var track Track

	result := db.First(&track, "id = ? AND conference_id = ?", trackId, conferenceId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return track, ErrTrackNotFound
		}
		slog.Error("sql error in get track", "track_id", trackId, "error", result.Error)
		return track, ErrDbAccessFailed
	}

	return track, nil
}

func GetSubmission(submissionId uuid.UUID, db *gorm.DB, loadAuthors, loadFiles bool) (Submission, error) {
	var submission Submission

	query := db
	if loadAuthors {
		query = query.Preload("Authors", func(db *gorm.DB) *gorm.DB { return db.Order("author_order") })
	}
	if loadFiles {
		query = query.Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("uploaded_at") })
	}

	result := query.First(&submission, "id = ?", submissionId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return submission, ErrSubmissionNotFound
		}
		slog.Error("sql error in get submission", "submission_id", submissionId, "error", result.Error)
		return submission, ErrDbAccessFailed
	}

	return submission, nil
}

func GetSubmissionFile(submissionId, fileId uuid.UUID, db *gorm.DB) (SubmissionFile, error) {
	var file SubmissionFile

	result := db.First(&file, "id = ? AND submission_id = ?", fileId, submissionId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return file, ErrFileNotFound
		}
		slog.Error("sql error in get submission file", "file_id", fileId, "error", result.Error)
		return file, ErrDbAccessFailed
	}

	return file, nil
}

func GetAssignment(assignmentId uuid.UUID, db *gorm.DB, loadReview bool) (Assignment, error) {
	var assignment Assignment

	query := db
	if loadReview {
		query = query.Preload("Review")
	}

	result := query.First(&assignment, "id = ?", assignmentId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return assignment, ErrAssignmentNotFound
		}
		slog.Error("sql error in get assignment", "assignment_id", assignmentId, "error", result.Error)
		return assignment, ErrDbAccessFailed
	}

	return assignment, nil
}

func GetReview(reviewId uuid.UUID, db *gorm.DB) (Review, error) {
	var review Review

	result := db.First(&review, "id = ?", reviewId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return review, ErrReviewNotFound
		}
		slog.Error("sql error in get review", "review_id", reviewId, "error", result.Error)
		return review, ErrDbAccessFailed
	}

	return review, nil
}

func GetInvitationByToken(token string, db *gorm.DB) (ReviewerInvitation, error) {
	var invitation ReviewerInvitation

	result := db.First(&invitation, "token = ?", token)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return invitation, ErrInvitationNotFound
		}
		slog.Error("sql error in get invitation by token", "error", result.Error)
		return invitation, ErrDbAccessFailed
	}

	return invitation, nil
}
