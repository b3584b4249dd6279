package services

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/client"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/auth"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/cache"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/config"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/events"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/mailer"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/metrics"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/repository"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/storage"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/summarize"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/validation"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils"
)

type Options struct {
	MaxTopics            int
	MaxUploadBytes       int64
	InvitationExpiry     time.Duration
	RateLimitPerMinute   int
	ConferenceCacheTtl   time.Duration
	SimilarityMaxResults int
	PublicUrl            string
}

type Deps struct {
	Db               *gorm.DB
	Authenticator    *auth.Authenticator
	IdentityProvider auth.IdentityProvider
	Storage          storage.Storage
	Cache            cache.Cache
	Bus              events.Bus
	Mailer           mailer.Mailer
	Summarizer       summarize.Summarizer
	Validator        *validation.Validator
	Users            client.UserDirectory
	Conferences      client.ConferenceDirectory
	Options          Options
}

// Platform mounts the enabled services on one router. Services that are not
// enabled are left out entirely so each one can run in its own process.
type Platform struct {
	identity     IdentityService
	conference   ConferenceService
	submission   SubmissionService
	review       ReviewService
	invitation   InvitationService
	notification NotificationService

	enabled []string
	db      *gorm.DB
	cache   cache.Cache
}

func NewPlatform(deps Deps, enabled []string) *Platform {
	uow := repository.NewUnitOfWork(deps.Db)
	opts := deps.Options

	p := &Platform{
		identity: IdentityService{
			uow:       uow,
			userAuth:  deps.IdentityProvider,
			authn:     deps.Authenticator,
			validator: deps.Validator,
			rateLimit: opts.RateLimitPerMinute,
		},
		conference: ConferenceService{
			uow:       uow,
			authn:     deps.Authenticator,
			validator: deps.Validator,
			cache:     deps.Cache,
			cacheTtl:  opts.ConferenceCacheTtl,
			users:     deps.Users,
			maxTopics: opts.MaxTopics,
		},
		submission: SubmissionService{
			uow:                  uow,
			authn:                deps.Authenticator,
			validator:            deps.Validator,
			storage:              deps.Storage,
			users:                deps.Users,
			conferences:          deps.Conferences,
			summarizer:           deps.Summarizer,
			maxUploadBytes:       opts.MaxUploadBytes,
			similarityMaxResults: opts.SimilarityMaxResults,
		},
		review: ReviewService{
			uow:         uow,
			authn:       deps.Authenticator,
			validator:   deps.Validator,
			users:       deps.Users,
			conferences: deps.Conferences,
			bus:         deps.Bus,
		},
		invitation: InvitationService{
			uow:         uow,
			authn:       deps.Authenticator,
			validator:   deps.Validator,
			conferences: deps.Conferences,
			bus:         deps.Bus,
			expiry:      opts.InvitationExpiry,
			publicUrl:   opts.PublicUrl,
			rateLimit:   opts.RateLimitPerMinute,
		},
		notification: NotificationService{
			uow:       uow,
			authn:     deps.Authenticator,
			validator: deps.Validator,
			mailer:    deps.Mailer,
		},
		enabled: enabled,
		db:      deps.Db,
		cache:   deps.Cache,
	}

	if p.isEnabled(config.ServiceNotification) {
		p.notification.Subscribe(deps.Bus)
	}

	return p
}

func (p *Platform) isEnabled(service string) bool {
	return slices.Contains(p.enabled, service)
}

func (p *Platform) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Route("/api", func(r chi.Router) {
		if p.isEnabled(config.ServiceIdentity) {
			r.With(metrics.Middleware(config.ServiceIdentity)).Mount("/users", p.identity.Routes())
		}
		if p.isEnabled(config.ServiceConference) {
			r.With(metrics.Middleware(config.ServiceConference)).Mount("/conferences", p.conference.Routes())
		}
		if p.isEnabled(config.ServiceSubmission) {
			r.With(metrics.Middleware(config.ServiceSubmission)).Mount("/submissions", p.submission.Routes())
		}
		if p.isEnabled(config.ServiceReview) {
			reviewMetrics := metrics.Middleware(config.ServiceReview)
			r.With(reviewMetrics).Mount("/assignment", p.review.AssignmentRoutes())
			r.With(reviewMetrics).Mount("/review", p.review.ReviewRoutes())
			r.With(reviewMetrics).Mount("/decision", p.review.DecisionRoutes())
			r.With(reviewMetrics).Mount("/reviewers", p.invitation.Routes())
		}
		if p.isEnabled(config.ServiceNotification) {
			r.With(metrics.Middleware(config.ServiceNotification)).Mount("/notifications", p.notification.Routes())
		}
	})

	r.Get("/health", p.Health)
	r.Handle("/metrics", metrics.Handler())

	return r
}

type healthStatus struct {
	Status   string   `json:"status"`
	Services []string `json:"services"`
	Database string   `json:"database"`
	Cache    string   `json:"cache"`
}

func (p *Platform) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := healthStatus{Status: "ok", Services: p.enabled, Database: "ok", Cache: "ok"}

	if sqlDb, err := p.db.DB(); err != nil {
		status.Database = err.Error()
	} else if err := sqlDb.PingContext(ctx); err != nil {
		status.Database = err.Error()
	}

	if err := p.cache.Ping(ctx); err != nil {
		status.Cache = err.Error()
	}

	code := http.StatusOK
	if status.Database != "ok" || status.Cache != "ok" {
		slog.Error("health check failed", "database", status.Database, "cache", status.Cache)
		status.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	utils.WriteJsonStatus(w, code, status)
}
