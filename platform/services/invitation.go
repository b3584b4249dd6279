package services

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/client"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/auth"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/events"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/mailer"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/repository"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/validation"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils/logging"
)

var ErrInvitationExpired = errors.New("invitation has expired")

type InvitationService struct {
	uow         *repository.UnitOfWork
	authn       *auth.Authenticator
	validator   *validation.Validator
	conferences client.ConferenceDirectory
	bus         events.Publisher
	expiry      time.Duration
	publicUrl   string
	rateLimit   int
}

func (s *InvitationService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(rateLimited(s.rateLimit))
		r.Use(s.authn.Optional()...)

		r.Post("/invitation/respond", s.Respond)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authn.Required()...)

		r.Get("/my-invitations", s.MyInvitations)

		r.Group(func(r chi.Router) {
			r.Use(auth.ChairOnly())

			r.Post("/invite", s.Invite)
			r.Get("/invitations", s.List)
		})
	})

	return r
}

type InvitationInfo struct {
	Id            uuid.UUID  `json:"id"`
	ConferenceId  uuid.UUID  `json:"conferenceId"`
	Email         string     `json:"email"`
	FullName      string     `json:"fullName"`
	Token         string     `json:"token,omitempty"`
	Status        string     `json:"status"`
	InvitedBy     uuid.UUID  `json:"invitedBy"`
	UserId        *uuid.UUID `json:"userId"`
	DeclineReason string     `json:"declineReason,omitempty"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	IsExpired     bool       `json:"isExpired"`
	RespondedAt   *time.Time `json:"respondedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func convertToInvitationInfo(i schema.ReviewerInvitation) InvitationInfo {
	return InvitationInfo{
		Id:            i.Id,
		ConferenceId:  i.ConferenceId,
		Email:         i.Email,
		FullName:      i.FullName,
		Token:         i.Token,
		Status:        i.Status,
		InvitedBy:     i.InvitedBy,
		UserId:        i.UserId,
		DeclineReason: i.DeclineReason,
		ExpiresAt:     i.ExpiresAt,
		IsExpired:     i.Status == schema.InvitationPending && time.Now().UTC().After(i.ExpiresAt),
		RespondedAt:   i.RespondedAt,
		CreatedAt:     i.CreatedAt,
	}
}

// newInvitationToken returns 32 random bytes, url safe encoded.
func newInvitationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("error generating invitation token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

type inviteRequest struct {
	ConferenceId uuid.UUID `json:"conferenceId" validate:"required"`
	Email        string    `json:"email" validate:"required,email,max=254"`
	FullName     string    `json:"fullName" validate:"max=200"`
}

func (s *InvitationService) Invite(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "inviting reviewer", err)
		return
	}

	var params inviteRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	params.Email = strings.TrimSpace(params.Email)

	if err := s.validator.Struct(r, params); err != nil {
		writeError(w, "inviting reviewer", err)
		return
	}

	conference, err := lookupManagedConference(r, s.conferences, p, params.ConferenceId)
	if err != nil {
		writeError(w, "inviting reviewer", err)
		return
	}
	if conference.Status == schema.ConferenceCancelled || conference.Status == schema.ConferenceCompleted {
		writeError(w, "inviting reviewer", CodedError(fmt.Errorf("conference is %v", conference.Status), http.StatusConflict))
		return
	}

	token, err := newInvitationToken()
	if err != nil {
		writeError(w, "inviting reviewer", CodedError(err, http.StatusInternalServerError))
		return
	}

	now := time.Now().UTC()
	invitation := schema.ReviewerInvitation{
		Id:           uuid.New(),
		ConferenceId: params.ConferenceId,
		Email:        params.Email,
		FullName:     params.FullName,
		Token:        token,
		Status:       schema.InvitationPending,
		InvitedBy:    p.UserId,
		ExpiresAt:    now.Add(s.expiry),
	}

	err = s.uow.Do(func(repos *repository.Repos) error {
		pending, err := repos.Invitations.Exists(repository.Where(
			"conference_id = ? AND LOWER(email) = LOWER(?) AND status = ? AND expires_at > ?",
			params.ConferenceId, params.Email, schema.InvitationPending, now,
		))
		if err != nil {
			return CodedError(err, http.StatusInternalServerError)
		}
		if pending {
			return CodedError(fmt.Errorf("a pending invitation for %v already exists", params.Email), http.StatusConflict)
		}

		if err := repos.Invitations.Create(&invitation); err != nil {
			return repoError(err)
		}
		return nil
	})
	if err != nil {
		writeError(w, "inviting reviewer", err)
		return
	}

	slog.Info("reviewer invited", "code", logging.INVITATION, "invitation_id", invitation.Id, "conference_id", invitation.ConferenceId)

	s.publishInvitation(r, invitation, conference)

	utils.WriteJsonResponse(w, convertToInvitationInfo(invitation))
}

func (s *InvitationService) publishInvitation(r *http.Request, invitation schema.ReviewerInvitation, conference client.ConferenceInfo) {
	name := invitation.FullName
	if name == "" {
		name = invitation.Email
	}

	event := events.SendEmailEvent{
		To:       []string{invitation.Email},
		Subject:  fmt.Sprintf("Invitation to review for %v", conference.Name),
		Template: mailer.TemplateReviewerInvitation,
		Data: map[string]string{
			"name":       name,
			"conference": conference.Name,
			"expires":    invitation.ExpiresAt.Format("2006-01-02 15:04 MST"),
			"link":       fmt.Sprintf("%v/reviewer-invitation?token=%v", strings.TrimRight(s.publicUrl, "/"), url.QueryEscape(invitation.Token)),
		},
	}

	if err := s.bus.Publish(r.Context(), events.TopicSendEmail, event); err != nil {
		slog.Error("error publishing invitation email", "code", logging.INVITATION, "invitation_id", invitation.Id, "error", err)
	}
}

type respondInvitationRequest struct {
	Token      string `json:"token" validate:"required"`
	IsAccepted *bool  `json:"isAccepted" validate:"required"`
	Reason     string `json:"reason" validate:"max=1000"`
}

// Respond is reachable without a token so invitees can decline anonymously.
// Accepting links the caller and therefore requires authentication.
func (s *InvitationService) Respond(w http.ResponseWriter, r *http.Request) {
	var params respondInvitationRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if err := s.validator.Struct(r, params); err != nil {
		writeError(w, "responding to invitation", err)
		return
	}

	accept := *params.IsAccepted

	var principal auth.Principal
	if accept {
		p, err := requirePrincipal(r)
		if err != nil {
			writeError(w, "responding to invitation", err)
			return
		}
		principal = p
	}

	var invitation schema.ReviewerInvitation
	err := s.uow.Do(func(repos *repository.Repos) error {
		current, err := schema.GetInvitationByToken(params.Token, repos.Txn)
		if err != nil {
			return repoError(err)
		}
		if current.Status != schema.InvitationPending {
			return CodedError(fmt.Errorf("invitation was already %v", strings.ToLower(current.Status)), http.StatusConflict)
		}

		now := time.Now().UTC()
		if now.After(current.ExpiresAt) {
			return CodedError(ErrInvitationExpired, http.StatusGone)
		}

		values := map[string]interface{}{"responded_at": now}
		if accept {
			values["status"] = schema.InvitationAccepted
			values["user_id"] = principal.UserId
			current.Status = schema.InvitationAccepted
			current.UserId = &principal.UserId
		} else {
			values["status"] = schema.InvitationDeclined
			values["decline_reason"] = params.Reason
			current.Status = schema.InvitationDeclined
			current.DeclineReason = params.Reason
		}

		result := repos.Txn.Model(&schema.ReviewerInvitation{}).
			Where("id = ? AND status = ?", current.Id, schema.InvitationPending).
			Updates(values)
		if result.Error != nil {
			slog.Error("sql error updating invitation", "invitation_id", current.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected == 0 {
			return CodedError(errors.New("invitation was answered concurrently"), http.StatusConflict)
		}

		current.RespondedAt = &now
		invitation = current
		return nil
	})
	if err != nil {
		writeError(w, "responding to invitation", err)
		return
	}

	slog.Info("invitation answered", "code", logging.INVITATION, "invitation_id", invitation.Id, "status", invitation.Status)

	utils.WriteJsonResponse(w, convertToInvitationInfo(invitation))
}

// MyInvitations matches invitations linked to the caller or addressed to the
// caller's email.
func (s *InvitationService) MyInvitations(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "listing invitations", err)
		return
	}

	scope := repository.Where("user_id = ?", p.UserId)
	if p.Email != "" {
		scope = repository.Where("user_id = ? OR LOWER(email) = LOWER(?)", p.UserId, p.Email)
	}

	invitations, err := s.uow.Read().Invitations.Find(scope, repository.OrderBy("created_at DESC"))
	if err != nil {
		writeError(w, "listing invitations", repoError(err))
		return
	}

	infos := make([]InvitationInfo, 0, len(invitations))
	for _, invitation := range invitations {
		infos = append(infos, convertToInvitationInfo(invitation))
	}

	utils.WriteJsonResponse(w, infos)
}

// List is the chair's view of a conference's invitations. Tokens are left out,
// only the invitee receives one.
func (s *InvitationService) List(w http.ResponseWriter, r *http.Request) {
	p, err := requirePrincipal(r)
	if err != nil {
		writeError(w, "listing invitations", err)
		return
	}

	conferenceId, err := utils.QueryParamUUID(r, "conferenceId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if conferenceId == nil {
		http.Error(w, "missing conferenceId query parameter", http.StatusBadRequest)
		return
	}

	if _, err := lookupManagedConference(r, s.conferences, p, *conferenceId); err != nil {
		writeError(w, "listing invitations", err)
		return
	}

	page, err := utils.ParsePage(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	scopes := []repository.Scope{repository.Where("conference_id = ?", *conferenceId), repository.OrderBy("created_at DESC")}
	if status := r.URL.Query().Get("status"); status != "" {
		if err := schema.CheckValid("status", status, schema.InvitationStatuses); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		scopes = append(scopes, repository.Where("status = ?", status))
	}

	invitations, total, err := s.uow.Read().Invitations.List(page, scopes...)
	if err != nil {
		writeError(w, "listing invitations", repoError(err))
		return
	}

	infos := make([]InvitationInfo, 0, len(invitations))
	for _, invitation := range invitations {
		info := convertToInvitationInfo(invitation)
		info.Token = ""
		infos = append(infos, info)
	}

	utils.WriteJsonResponse(w, utils.PagedResponse[InvitationInfo]{Items: infos, Page: page.Page, PageSize: page.PageSize, Total: total})
}
