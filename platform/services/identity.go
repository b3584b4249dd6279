package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/auth"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/repository"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/validation"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils/logging"
)

const maxBatchUsers = 500

type IdentityService struct {
	uow       *repository.UnitOfWork
	userAuth  auth.IdentityProvider
	authn     *auth.Authenticator
	validator *validation.Validator
	rateLimit int
}

// rateLimited throttles unauthenticated endpoints per client ip. A limit of
// zero disables throttling.
func rateLimited(limit int) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(limit, time.Minute)
}

func (s *IdentityService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(rateLimited(s.rateLimit))

		if s.userAuth.AllowDirectSignup() {
			r.Post("/signup", s.Signup)
		}
		r.Get("/login", s.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authn.Required()...)

		r.Get("/me", s.Me)
		r.Post("/batch", s.Batch)

		r.Group(func(r chi.Router) {
			r.Use(auth.AdminOnly())

			r.Get("/list", s.List)
			r.Post("/{user_id}/roles", s.AddRole)
			r.Delete("/{user_id}/roles/{role}", s.RemoveRole)
		})
	})

	return r
}

type UserInfo struct {
	Id          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	Affiliation string    `json:"affiliation"`
	Roles       []string  `json:"roles"`
	CreatedAt   time.Time `json:"createdAt"`
}

func convertToUserInfo(user schema.User) UserInfo {
	roles := user.RoleNames()
	slices.Sort(roles)
	return UserInfo{
		Id:          user.Id,
		Username:    user.Username,
		Email:       user.Email,
		FullName:    user.FullName,
		Affiliation: user.Affiliation,
		Roles:       roles,
		CreatedAt:   user.CreatedAt,
	}
}

type signupRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=50"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	FullName    string `json:"fullName" validate:"max=200"`
	Affiliation string `json:"affiliation" validate:"max=300"`
}

type signupResponse struct {
	UserId uuid.UUID `json:"userId"`
}

func (s *IdentityService) Signup(w http.ResponseWriter, r *http.Request) {
	var params signupRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := s.validator.Struct(r, params); err != nil {
		writeError(w, "signing up", err)
		return
	}

	userId, err := s.userAuth.CreateUser(auth.NewUser{
		Username:    params.Username,
		Email:       params.Email,
		Password:    params.Password,
		FullName:    params.FullName,
		Affiliation: params.Affiliation,
	})
	if err != nil {
		responseCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			responseCode = http.StatusConflict
		case errors.Is(err, auth.ErrUsernameTaken):
			responseCode = http.StatusConflict
		}
		http.Error(w, err.Error(), responseCode)
		return
	}

	slog.Info("user signed up", "code", logging.IDENTITY, "user_id", userId)

	utils.WriteJsonResponse(w, signupResponse{UserId: userId})
}

type loginResponse struct {
	UserId      uuid.UUID `json:"userId"`
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
}

func (s *IdentityService) Login(w http.ResponseWriter, r *http.Request) {
	email, password, ok := r.BasicAuth()
	if !ok {
		http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
		return
	}

	login, err := s.userAuth.LoginWithEmail(email, password)
	if err != nil {
		responseCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, auth.ErrUnknownEmail):
			responseCode = http.StatusNotFound
		case errors.Is(err, auth.ErrWrongPassword):
			responseCode = http.StatusUnauthorized
		}
		http.Error(w, fmt.Sprintf("login failed: %v", err), responseCode)
		return
	}

	utils.WriteJsonResponse(w, loginResponse{UserId: login.UserId, AccessToken: login.AccessToken, TokenType: "Bearer"})
}

func (s *IdentityService) Me(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "retrieving user info", err)
		return
	}

	user, err := schema.GetUser(p.UserId, s.uow.DB())
	if err != nil {
		writeError(w, "retrieving user info", repoError(err))
		return
	}

	utils.WriteJsonResponse(w, convertToUserInfo(user))
}

func (s *IdentityService) List(w http.ResponseWriter, r *http.Request) {
	page, err := utils.ParsePage(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	users, total, err := s.uow.Read().Users.List(page, repository.Preload("Roles"), repository.OrderBy("username"))
	if err != nil {
		writeError(w, "listing users", repoError(err))
		return
	}

	infos := make([]UserInfo, 0, len(users))
	for _, user := range users {
		infos = append(infos, convertToUserInfo(user))
	}

	utils.WriteJsonResponse(w, utils.PagedResponse[UserInfo]{Items: infos, Page: page.Page, PageSize: page.PageSize, Total: total})
}

type batchUsersRequest struct {
	Ids []uuid.UUID `json:"ids"`
}

// batchUserInfo omits roles, other services only need display data.
type batchUserInfo struct {
	Id          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	Affiliation string    `json:"affiliation"`
}

func (s *IdentityService) Batch(w http.ResponseWriter, r *http.Request) {
	var params batchUsersRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if len(params.Ids) > maxBatchUsers {
		http.Error(w, fmt.Sprintf("at most %d users can be requested at once", maxBatchUsers), http.StatusBadRequest)
		return
	}

	infos := make([]batchUserInfo, 0, len(params.Ids))
	if len(params.Ids) > 0 {
		users, err := s.uow.Read().Users.Find(repository.Where("id IN ?", params.Ids))
		if err != nil {
			writeError(w, "retrieving users", repoError(err))
			return
		}

		for _, user := range users {
			infos = append(infos, batchUserInfo{
				Id:          user.Id,
				Username:    user.Username,
				Email:       user.Email,
				FullName:    user.FullName,
				Affiliation: user.Affiliation,
			})
		}
	}

	utils.WriteJsonResponse(w, infos)
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=SYSTEM_ADMIN CONFERENCE_CHAIR TRACK_CHAIR PC_MEMBER REVIEWER AUTHOR"`
}

func (s *IdentityService) AddRole(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params roleRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := s.validator.Struct(r, params); err != nil {
		writeError(w, "adding role", err)
		return
	}

	err = s.uow.Do(func(repos *repository.Repos) error {
		if _, err := repos.Users.Get(userId); err != nil {
			return repoError(err)
		}

		var existing schema.UserRole
		result := repos.Txn.Limit(1).Find(&existing, "user_id = ? AND role = ?", userId, params.Role)
		if result.Error != nil {
			slog.Error("sql error checking existing role", "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return nil
		}

		result = repos.Txn.Create(&schema.UserRole{UserId: userId, Role: params.Role})
		if result.Error != nil {
			slog.Error("sql error adding role", "user_id", userId, "role", params.Role, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		return nil
	})
	if err != nil {
		writeError(w, "adding role", err)
		return
	}

	slog.Info("role granted", "code", logging.IDENTITY, "user_id", userId, "role", params.Role)

	utils.WriteSuccess(w)
}

func (s *IdentityService) RemoveRole(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	role, err := utils.URLParam(r, "role")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := schema.CheckValid("role", role, schema.Roles); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.uow.Do(func(repos *repository.Repos) error {
		if _, err := repos.Users.Get(userId); err != nil {
			return repoError(err)
		}

		if role == schema.RoleSystemAdmin {
			var admins int64
			result := repos.Txn.Model(&schema.UserRole{}).Where("role = ? AND user_id <> ?", schema.RoleSystemAdmin, userId).Count(&admins)
			if result.Error != nil {
				slog.Error("sql error counting admins", "error", result.Error)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
			if admins == 0 {
				return CodedError(errors.New("cannot remove the last system admin"), http.StatusConflict)
			}
		}

		result := repos.Txn.Delete(&schema.UserRole{}, "user_id = ? AND role = ?", userId, role)
		if result.Error != nil {
			slog.Error("sql error removing role", "user_id", userId, "role", role, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(fmt.Errorf("user %v does not have role %v", userId, role), http.StatusNotFound)
		}
		return nil
	})
	if err != nil {
		writeError(w, "removing role", err)
		return
	}

	slog.Info("role revoked", "code", logging.IDENTITY, "user_id", userId, "role", role)

	utils.WriteSuccess(w)
}
