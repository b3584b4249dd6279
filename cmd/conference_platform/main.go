package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/client"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/auth"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/cache"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/config"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/events"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/mailer"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/migrations"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/services"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/storage"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/summarize"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/validation"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils/logging"
)

const redisPrefix = "conference:"

func openLog(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
}

func initLogging(cfg *config.Config) (io.Closer, error) {
	if cfg.LogFile == "" {
		log.SetFlags(log.Lshortfile | log.Ltime | log.Ldate)
		slog.SetDefault(logging.NewLogger(os.Stderr, cfg.LogFormat, cfg.LogLevel))
		slog.Info("logging initialized", "code", logging.SYSTEM, "format", cfg.LogFormat)
		return io.NopCloser(nil), nil
	}

	logFile, err := openLog(cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %w", err)
	}

	log.SetFlags(log.Lshortfile | log.Ltime | log.Ldate)
	log.SetOutput(io.MultiWriter(logFile, os.Stderr))
	slog.SetDefault(logging.NewFanoutLogger(logFile, os.Stderr, "conference_platform", cfg.LogFormat, cfg.LogLevel))
	slog.Info("logging initialized", "code", logging.SYSTEM, "log_file", cfg.LogFile, "format", cfg.LogFormat)

	return logFile, nil
}

func initDb(cfg *config.Config) (*gorm.DB, error) {
	dsn, err := config.PostgresDsn(cfg.DatabaseUri)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("error opening database connection: %w", err)
	}

	if cfg.AutoMigrate {
		if err := migrations.Migrate(db); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// initCacheAndBus uses redis when configured so that separately deployed
// services share cached conferences and events. Otherwise both stay in process.
func initCacheAndBus(cfg *config.Config) (cache.Cache, events.Bus, error) {
	if cfg.RedisUrl == "" {
		slog.Info("REDIS_URL not set, using in memory cache and event bus", "code", logging.SYSTEM)
		return cache.NewMemoryCache(), events.NewLocalBus(), nil
	}

	opts, err := redis.ParseURL(cfg.RedisUrl)
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	return cache.NewRedisCache(client, redisPrefix), events.NewRedisBus(client, redisPrefix), nil
}

func initMailer(cfg *config.Config) mailer.Mailer {
	if cfg.Smtp.Host == "" {
		slog.Warn("SMTP_HOST not set, emails will only be logged", "code", logging.NOTIFICATION)
		return mailer.LogMailer{}
	}
	return mailer.NewSmtpMailer(mailer.SmtpArgs{
		Host:     cfg.Smtp.Host,
		Port:     cfg.Smtp.Port,
		Username: cfg.Smtp.Username,
		Password: cfg.Smtp.Password,
		From:     cfg.Smtp.From,
	})
}

func initSummarizer(cfg *config.Config) summarize.Summarizer {
	extractive := summarize.Extractive{MaxSentences: cfg.SummaryMaxSentences}
	if cfg.OpenAiKey == "" {
		return extractive
	}
	return summarize.NewOpenAISummarizer(cfg.OpenAiKey, cfg.OpenAiModel, extractive)
}

func initValidator(cfg *config.Config) (*validation.Validator, error) {
	catalog := validation.NewCatalog(cfg.MessageLanguage)
	if cfg.MessageOverrides != "" {
		if err := catalog.LoadOverrides(cfg.MessageOverrides); err != nil {
			return nil, err
		}
	}
	return validation.New(catalog), nil
}

// upstreamUrl defaults to this process, which is correct whenever the
// upstream service runs alongside the caller.
func upstreamUrl(configured string, port int) string {
	if configured != "" {
		return configured
	}
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}

func runApp(envFile, servicesFlag string, portFlag int) error {
	if envFile != "" {
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if portFlag > 0 {
		cfg.Port = portFlag
	}

	enabled, err := config.ParseServices(servicesFlag)
	if err != nil {
		return err
	}

	logCloser, err := initLogging(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	var auditOut io.Writer = os.Stderr
	if cfg.AuditLog != "" {
		auditFile, err := openLog(cfg.AuditLog)
		if err != nil {
			return fmt.Errorf("error opening audit log file: %w", err)
		}
		defer auditFile.Close()
		auditOut = auditFile
	}

	db, err := initDb(cfg)
	if err != nil {
		return err
	}

	sharedCache, bus, err := initCacheAndBus(cfg)
	if err != nil {
		return err
	}
	defer bus.Close()

	validator, err := initValidator(cfg)
	if err != nil {
		return err
	}

	jwtManager := auth.NewJwtManager(auth.JwtArgs{
		Secret:   []byte(cfg.Jwt.Secret),
		Issuer:   cfg.Jwt.Issuer,
		Audience: cfg.Jwt.Audience,
		Expiry:   cfg.Jwt.Expiry,
	})

	identityProvider, err := auth.NewBasicIdentityProvider(db, jwtManager, auth.BasicProviderArgs{
		AdminUsername: cfg.Admin.Username,
		AdminEmail:    cfg.Admin.Email,
		AdminPassword: cfg.Admin.Password,
	})
	if err != nil {
		return fmt.Errorf("error creating identity provider: %w", err)
	}

	platform := services.NewPlatform(services.Deps{
		Db:               db,
		Authenticator:    auth.NewAuthenticator(jwtManager, auth.NewAuditLogger(auditOut)),
		IdentityProvider: identityProvider,
		Storage:          storage.NewSharedDisk(cfg.StorageDir),
		Cache:            sharedCache,
		Bus:              bus,
		Mailer:           initMailer(cfg),
		Summarizer:       initSummarizer(cfg),
		Validator:        validator,
		Users:            client.NewIdentityClient(upstreamUrl(cfg.Upstream.IdentityUrl, cfg.Port), cfg.Upstream.Timeout),
		Conferences:      client.NewConferenceClient(upstreamUrl(cfg.Upstream.ConferenceUrl, cfg.Port), cfg.Upstream.Timeout),
		Options: services.Options{
			MaxTopics:            cfg.MaxTopics,
			MaxUploadBytes:       cfg.MaxUploadBytes,
			InvitationExpiry:     cfg.InvitationExpiry,
			RateLimitPerMinute:   cfg.RateLimitPerMinute,
			ConferenceCacheTtl:   cfg.ConferenceCacheTtl,
			SimilarityMaxResults: cfg.SimilarityMaxResults,
			PublicUrl:            cfg.PublicUrl,
		},
	}, enabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	busDone := make(chan error, 1)
	go func() {
		busDone <- bus.Run(ctx)
	}()

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Accept-Language"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/", platform.Routes())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "code", logging.SYSTEM, "port", cfg.Port, "services", enabled)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen and serve returned error: %w", err)
		}
	case err := <-busDone:
		if err != nil {
			return fmt.Errorf("event bus stopped: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down", "code", logging.SYSTEM)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	return nil
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	servicesFlag := flag.String("services", "all", "Comma separated services to run: identity, conference, submission, review, notification.")
	port := flag.Int("port", 0, "Port to run server on, overrides PORT.")

	flag.Parse()

	if err := runApp(*envFile, *servicesFlag, *port); err != nil {
		log.Fatal(err)
	}
}
