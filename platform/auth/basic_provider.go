package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
)

const passwordCost = 10

// BasicIdentityProvider keeps bcrypt hashed passwords in the users table.
type BasicIdentityProvider struct {
	jwtManager *JwtManager
	db         *gorm.DB
}

type BasicProviderArgs struct {
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

func hashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}
	return hash, nil
}

// checkAvailable returns ErrUsernameTaken or ErrEmailTaken if either is
// already registered. Emails compare case insensitively.
func checkAvailable(txn *gorm.DB, username, email string) error {
	var existing []schema.User
	err := txn.Select("username", "email").
		Where("username = ? OR LOWER(email) = ?", username, strings.ToLower(email)).
		Limit(2).Find(&existing).Error
	if err != nil {
		slog.Error("sql error checking username and email availability", "error", err)
		return schema.ErrDbAccessFailed
	}
	for _, user := range existing {
		if user.Username == username {
			return ErrUsernameTaken
		}
	}
	if len(existing) > 0 {
		return ErrEmailTaken
	}
	return nil
}

func insertUser(db *gorm.DB, user *schema.User) error {
	return db.Transaction(func(txn *gorm.DB) error {
		if err := checkAvailable(txn, user.Username, user.Email); err != nil {
			return err
		}
		if err := txn.Create(user).Error; err != nil {
			slog.Error("sql error inserting user", "username", user.Username, "error", err)
			return schema.ErrDbAccessFailed
		}
		return nil
	})
}

// NewBasicIdentityProvider seeds the configured system admin on first start.
// Restarts find the admin already present and leave it untouched.
func NewBasicIdentityProvider(db *gorm.DB, jwtManager *JwtManager, args BasicProviderArgs) (IdentityProvider, error) {
	if args.AdminUsername == "" || args.AdminEmail == "" || args.AdminPassword == "" {
		return nil, ErrAdminMisconfig
	}

	hash, err := hashPassword(args.AdminPassword)
	if err != nil {
		return nil, err
	}

	adminId := uuid.New()
	admin := schema.User{
		Id:       adminId,
		Username: args.AdminUsername,
		Email:    args.AdminEmail,
		FullName: args.AdminUsername,
		Password: hash,
		Roles:    []schema.UserRole{{UserId: adminId, Role: schema.RoleSystemAdmin}},
	}

	switch err := insertUser(db, &admin); {
	case err == nil:
		slog.Info("created initial admin", "username", admin.Username)
	case errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrEmailTaken):
	default:
		return nil, fmt.Errorf("error seeding initial admin: %w", err)
	}

	return &BasicIdentityProvider{jwtManager: jwtManager, db: db}, nil
}

func (p *BasicIdentityProvider) AllowDirectSignup() bool {
	return true
}

func (p *BasicIdentityProvider) LoginWithEmail(email, password string) (LoginResult, error) {
	var user schema.User
	err := p.db.Preload("Roles").Where("LOWER(email) = ?", strings.ToLower(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return LoginResult{}, ErrUnknownEmail
	}
	if err != nil {
		slog.Error("sql error loading user for login", "error", err)
		return LoginResult{}, schema.ErrDbAccessFailed
	}

	if bcrypt.CompareHashAndPassword(user.Password, []byte(password)) != nil {
		return LoginResult{}, ErrWrongPassword
	}

	token, err := p.jwtManager.CreateUserJwt(user)
	if err != nil {
		slog.Error("error signing access token", "user_id", user.Id, "error", err)
		return LoginResult{}, ErrTokenIssue
	}

	return LoginResult{UserId: user.Id, AccessToken: token}, nil
}

func (p *BasicIdentityProvider) CreateUser(args NewUser) (uuid.UUID, error) {
	hash, err := hashPassword(args.Password)
	if err != nil {
		return uuid.Nil, err
	}

	roles := args.Roles
	if len(roles) == 0 {
		roles = []string{schema.RoleAuthor}
	}

	user := schema.User{
		Id:          uuid.New(),
		Username:    args.Username,
		Email:       args.Email,
		FullName:    args.FullName,
		Affiliation: args.Affiliation,
		Password:    hash,
	}
	for _, role := range roles {
		user.Roles = append(user.Roles, schema.UserRole{UserId: user.Id, Role: role})
	}

	if err := insertUser(p.db, &user); err != nil {
		return uuid.Nil, fmt.Errorf("error registering user %q: %w", args.Username, err)
	}

	return user.Id, nil
}
