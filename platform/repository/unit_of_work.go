package repository

import (
	"gorm.io/gorm"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
)

// Repos groups the repositories bound to one database handle, either a
// transaction or the root connection.
type Repos struct {
	Txn *gorm.DB

	Users       Repository[schema.User]
	Conferences Repository[schema.Conference]
	Tracks      Repository[schema.Track]
	Deadlines   Repository[schema.Deadline]
	Submissions Repository[schema.Submission]
	Files       Repository[schema.SubmissionFile]
	Assignments Repository[schema.Assignment]
	Reviews     Repository[schema.Review]
	Decisions   Repository[schema.Decision]
	Invitations Repository[schema.ReviewerInvitation]
	EmailLogs   Repository[schema.EmailLog]
}

func NewRepos(db *gorm.DB) *Repos {
	return &Repos{
		Txn:         db,
		Users:       New[schema.User](db, "users", schema.ErrUserNotFound),
		Conferences: New[schema.Conference](db, "conferences", schema.ErrConferenceNotFound),
		Tracks:      New[schema.Track](db, "tracks", schema.ErrTrackNotFound),
		Deadlines:   New[schema.Deadline](db, "deadlines", schema.ErrDeadlineNotFound),
		Submissions: New[schema.Submission](db, "submissions", schema.ErrSubmissionNotFound),
		Files:       New[schema.SubmissionFile](db, "submission_files", schema.ErrFileNotFound),
		Assignments: New[schema.Assignment](db, "assignments", schema.ErrAssignmentNotFound),
		Reviews:     New[schema.Review](db, "reviews", schema.ErrReviewNotFound),
		Decisions:   New[schema.Decision](db, "decisions", schema.ErrDecisionNotFound),
		Invitations: New[schema.ReviewerInvitation](db, "reviewer_invitations", schema.ErrInvitationNotFound),
		EmailLogs:   New[schema.EmailLog](db, "email_logs", schema.ErrDbAccessFailed),
	}
}

// UnitOfWork scopes one request's writes to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type UnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) Do(fn func(repos *Repos) error) error {
	return u.db.Transaction(func(txn *gorm.DB) error {
		return fn(NewRepos(txn))
	})
}

// Read returns repositories on the root connection for reads that need no
// transaction.
func (u *UnitOfWork) Read() *Repos {
	return NewRepos(u.db)
}

func (u *UnitOfWork) DB() *gorm.DB {
	return u.db
}
