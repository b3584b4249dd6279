package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/auth"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/events"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/mailer"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/metrics"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/repository"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/validation"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils/logging"
)

const (
	eventDirectSend     = "direct"
	maxEmailErrorLength = 2000
)

// truncateRunes cuts s to at most limit characters without splitting a
// multi-byte character.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

type NotificationService struct {
	uow       *repository.UnitOfWork
	authn     *auth.Authenticator
	validator *validation.Validator
	mailer    mailer.Mailer
}

func (s *NotificationService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.authn.Required()...)

		r.With(auth.ChairOnly()).Post("/send-email", s.SendEmail)
		r.With(auth.AdminOnly()).Get("/emails", s.ListEmails)
	})

	return r
}

// Subscribe registers the email handlers on the bus. It must run before the
// bus is started.
func (s *NotificationService) Subscribe(bus events.Bus) {
	bus.Subscribe(events.TopicSendEmail, s.handleSendEmail)
	bus.Subscribe(events.TopicReviewAssigned, s.handleReviewAssigned)
}

type EmailLogInfo struct {
	Id         uuid.UUID `json:"id"`
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	EventType  string    `json:"eventType"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  string    `json:"createdAt"`
}

func convertToEmailLogInfo(l schema.EmailLog) EmailLogInfo {
	return EmailLogInfo{
		Id:         l.Id,
		Recipients: l.Recipients,
		Subject:    l.Subject,
		EventType:  l.EventType,
		Status:     l.Status,
		Error:      l.Error,
		CreatedAt:  l.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// deliver renders and sends one email and records the outcome. The returned
// error is the mailer's.
func (s *NotificationService) deliver(ctx context.Context, eventType, template string, to []string, subject string, data map[string]string) error {
	entry := schema.EmailLog{
		Id:         uuid.New(),
		Recipients: to,
		Subject:    subject,
		EventType:  eventType,
		Status:     schema.EmailSent,
	}

	body, err := mailer.Render(template, subject, data)
	if err == nil {
		err = s.mailer.Send(ctx, mailer.Message{To: to, Subject: subject, HtmlBody: body})
	}
	if err != nil {
		entry.Status = schema.EmailFailed
		entry.Error = truncateRunes(err.Error(), maxEmailErrorLength)
	}

	metrics.EmailsSent.WithLabelValues(strings.ToLower(entry.Status)).Inc()

	if logErr := s.uow.Read().EmailLogs.Create(&entry); logErr != nil {
		slog.Error("error recording email log", "code", logging.NOTIFICATION, "subject", subject, "error", logErr)
	}

	if err != nil {
		slog.Error("email delivery failed", "code", logging.NOTIFICATION, "event", eventType, "to", to, "error", err)
		return err
	}

	slog.Info("email sent", "code", logging.NOTIFICATION, "event", eventType, "to", to)
	return nil
}

type sendEmailRequest struct {
	To      []string `json:"to" validate:"required,min=1,max=100,dive,required,email"`
	Subject string   `json:"subject" validate:"required,max=500"`
	Body    string   `json:"body" validate:"required,max=20000"`
}

func (s *NotificationService) SendEmail(w http.ResponseWriter, r *http.Request) {
	var params sendEmailRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}
	if err := s.validator.Struct(r, params); err != nil {
		writeError(w, "sending email", err)
		return
	}

	err := s.deliver(r.Context(), eventDirectSend, mailer.TemplatePlain, params.To, params.Subject, map[string]string{"body": params.Body})
	if err != nil {
		writeError(w, "sending email", CodedError(err, http.StatusBadGateway))
		return
	}

	utils.WriteJsonResponse(w, OperationResult{Success: true, Message: fmt.Sprintf("email sent to %d recipients", len(params.To))})
}

func (s *NotificationService) ListEmails(w http.ResponseWriter, r *http.Request) {
	page, err := utils.ParsePage(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	scopes := []repository.Scope{repository.OrderBy("created_at DESC")}
	if status := r.URL.Query().Get("status"); status != "" {
		scopes = append(scopes, repository.Where("status = ?", strings.ToUpper(status)))
	}

	logs, total, err := s.uow.Read().EmailLogs.List(page, scopes...)
	if err != nil {
		writeError(w, "listing emails", repoError(err))
		return
	}

	infos := make([]EmailLogInfo, 0, len(logs))
	for _, l := range logs {
		infos = append(infos, convertToEmailLogInfo(l))
	}

	utils.WriteJsonResponse(w, utils.PagedResponse[EmailLogInfo]{Items: infos, Page: page.Page, PageSize: page.PageSize, Total: total})
}

func (s *NotificationService) handleSendEmail(ctx context.Context, payload []byte) error {
	var event events.SendEmailEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("error decoding send email event: %w", err)
	}

	template := event.Template
	if template == "" {
		template = mailer.TemplatePlain
	}

	return s.deliver(ctx, events.TopicSendEmail, template, event.To, event.Subject, event.Data)
}

func (s *NotificationService) handleReviewAssigned(ctx context.Context, payload []byte) error {
	var event events.ReviewAssignedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("error decoding review assigned event: %w", err)
	}

	if event.ReviewerEmail == "" {
		slog.Warn("review assigned without reviewer email, skipping notification", "code", logging.NOTIFICATION, "assignment_id", event.AssignmentId)
		return nil
	}

	data := map[string]string{"title": event.PaperTitle}
	if event.DueDate != nil {
		data["due"] = event.DueDate.UTC().Format("2006-01-02")
	}

	return s.deliver(ctx, events.TopicReviewAssigned, mailer.TemplateReviewAssigned, []string{event.ReviewerEmail}, fmt.Sprintf("New review assignment: %v", event.PaperTitle), data)
}
