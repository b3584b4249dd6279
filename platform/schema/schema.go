package schema

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Username    string `gorm:"unique;size:50;not null"`
	Email       string `gorm:"unique;size:254;not null"`
	FullName    string `gorm:"size:200"`
	Affiliation string `gorm:"size:300"`
	Password    []byte

	Roles []UserRole `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) RoleNames() []string {
	roles := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		roles = append(roles, role.Role)
	}
	return roles
}

type UserRole struct {
	UserId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role   string    `gorm:"size:50;primaryKey"`
}

type Conference struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name        string `gorm:"unique;size:200;not null"`
	Acronym     string `gorm:"unique;size:20;not null"`
	Description string `gorm:"size:5000"`
	Location    string `gorm:"size:300"`

	StartDate time.Time `gorm:"not null"`
	EndDate   time.Time `gorm:"not null"`

	Status     string `gorm:"size:20;not null;default:'DRAFT';index"`
	Visibility string `gorm:"size:20;not null;default:'PRIVATE'"`
	ReviewMode string `gorm:"size:20;not null;default:'DOUBLE_BLIND'"`

	CreatedBy uuid.UUID `gorm:"type:uuid;not null"`

	Tracks        []Track        `gorm:"constraint:OnDelete:CASCADE"`
	Topics        []Topic        `gorm:"constraint:OnDelete:CASCADE"`
	Deadlines     []Deadline     `gorm:"constraint:OnDelete:CASCADE"`
	CallForPapers *CallForPapers `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubmissionDeadline returns the SUBMISSION deadline if one is configured.
func (c *Conference) SubmissionDeadline() *time.Time {
	for _, d := range c.Deadlines {
		if d.Type == DeadlineSubmission {
			date := d.Date
			return &date
		}
	}
	return nil
}

type Track struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConferenceId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_track_conference_name"`
	Name         string    `gorm:"size:200;not null;uniqueIndex:idx_track_conference_name"`
	Description  string    `gorm:"size:2000"`
}

type Topic struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConferenceId uuid.UUID `gorm:"type:uuid;not null;index"`
	Name         string    `gorm:"size:200;not null"`
}

type Deadline struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConferenceId uuid.UUID `gorm:"type:uuid;not null;index"`
	Type         string    `gorm:"size:30;not null"`
	Date         time.Time `gorm:"not null"`
	Description  string    `gorm:"size:500"`
}

type CallForPapers struct {
	ConferenceId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title        string    `gorm:"size:300"`
	Description  string    `gorm:"size:10000"`
	Guidelines   string    `gorm:"size:10000"`
	IsPublished  bool      `gorm:"not null;default:false"`
	PublishedAt  *time.Time
	UpdatedAt    time.Time
}

type Submission struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	ConferenceId uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_submission_paper_number;index"`
	TrackId      *uuid.UUID `gorm:"type:uuid"`
	PaperNumber  int        `gorm:"not null;uniqueIndex:idx_submission_paper_number"`

	Title    string   `gorm:"size:300;not null"`
	Abstract string   `gorm:"size:5000;not null"`
	Keywords []string `gorm:"serializer:json"`

	Status         string `gorm:"size:20;not null;index"`
	WithdrawReason string `gorm:"size:1000"`

	SubmittedBy uuid.UUID `gorm:"type:uuid;not null;index"`
	SubmittedAt *time.Time

	Authors []Author         `gorm:"constraint:OnDelete:CASCADE"`
	Files   []SubmissionFile `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SubmissionCounter is the per conference paper number sequence. The row is
// incremented in place so concurrent creates serialize on its row lock.
type SubmissionCounter struct {
	ConferenceId uuid.UUID `gorm:"type:uuid;primaryKey"`
	LastNumber   int       `gorm:"not null;default:0"`
}

type Author struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubmissionId    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_author_order"`
	AuthorOrder     int       `gorm:"not null;uniqueIndex:idx_author_order"`
	Name            string    `gorm:"size:200;not null"`
	Email           string    `gorm:"size:254;not null"`
	Affiliation     string    `gorm:"size:300"`
	IsCorresponding bool      `gorm:"not null;default:false"`
}

type SubmissionFile struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubmissionId uuid.UUID `gorm:"type:uuid;not null;index"`
	FileName     string    `gorm:"size:300;not null"`
	StoragePath  string    `gorm:"size:1000;not null"`
	ContentType  string    `gorm:"size:100"`
	SizeBytes    int64
	PageCount    int
	UploadedBy   uuid.UUID `gorm:"type:uuid;not null"`
	UploadedAt   time.Time
}

type Assignment struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubmissionId uuid.UUID `gorm:"type:uuid;not null;index"`
	ReviewerId   uuid.UUID `gorm:"type:uuid;not null;index"`
	AssignedBy   uuid.UUID `gorm:"type:uuid;not null"`

	Status        string `gorm:"size:20;not null;index"`
	DeclineReason string `gorm:"size:1000"`
	DueDate       *time.Time
	RespondedAt   *time.Time

	Review *Review `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Review struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	AssignmentId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`

	NoveltyScore      int `gorm:"not null"`
	MethodologyScore  int `gorm:"not null"`
	PresentationScore int `gorm:"not null"`
	OverallScore      int `gorm:"not null"`

	CommentsForAuthors   string `gorm:"size:10000"`
	ConfidentialComments string `gorm:"size:10000"`
	Recommendation       string `gorm:"size:20;not null"`

	SubmittedAt time.Time
	UpdatedAt   time.Time
}

type Decision struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	SubmissionId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Status       string    `gorm:"size:30;not null"`
	Comments     string    `gorm:"size:10000"`

	// Users belong to the identity service. DecidedBy is not a foreign key.
	DecidedBy *uuid.UUID `gorm:"type:uuid"`
	DecidedAt time.Time
}

type ReviewerInvitation struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConferenceId uuid.UUID `gorm:"type:uuid;not null;index"`
	Email        string    `gorm:"size:254;not null;index"`
	FullName     string    `gorm:"size:200"`
	Token        string    `gorm:"size:100;not null;uniqueIndex"`

	Status        string     `gorm:"size:20;not null"`
	InvitedBy     uuid.UUID  `gorm:"type:uuid;not null"`
	UserId        *uuid.UUID `gorm:"type:uuid;index"`
	DeclineReason string     `gorm:"size:1000"`

	ExpiresAt   time.Time
	RespondedAt *time.Time
	CreatedAt   time.Time
}

type EmailLog struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Recipients []string  `gorm:"serializer:json"`
	Subject    string    `gorm:"size:500"`
	EventType  string    `gorm:"size:100"`
	Status     string    `gorm:"size:20;not null"`
	Error      string    `gorm:"size:2000"`
	CreatedAt  time.Time
}

// AllModels lists every table in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&User{}, &UserRole{},
		&Conference{}, &Track{}, &Topic{}, &Deadline{}, &CallForPapers{},
		&Submission{}, &SubmissionCounter{}, &Author{}, &SubmissionFile{},
		&Assignment{}, &Review{}, &Decision{}, &ReviewerInvitation{},
		&EmailLog{},
	}
}
