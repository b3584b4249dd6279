package auth

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUnknownEmail   = errors.New("no account is registered with this email")
	ErrWrongPassword  = errors.New("password does not match")
	ErrTokenIssue     = errors.New("unable to issue access token")
	ErrEmailTaken     = errors.New("email is already registered")
	ErrUsernameTaken  = errors.New("username is already taken")
	ErrAdminMisconfig = errors.New("initial admin requires username, email and password")
)

type LoginResult struct {
	UserId      uuid.UUID
	AccessToken string
}

// NewUser carries a registration. Roles defaults to AUTHOR when empty.
type NewUser struct {
	Username    string
	Email       string
	Password    string
	FullName    string
	Affiliation string
	Roles       []string
}

// IdentityProvider owns credentials. The identity service delegates signup and
// login to it and never reads password hashes itself.
type IdentityProvider interface {
	AllowDirectSignup() bool

	LoginWithEmail(email, password string) (LoginResult, error)

	CreateUser(user NewUser) (uuid.UUID, error)
}
