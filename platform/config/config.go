package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	ServiceIdentity     = "identity"
	ServiceConference   = "conference"
	ServiceSubmission   = "submission"
	ServiceReview       = "review"
	ServiceNotification = "notification"
)

var AllServices = []string{ServiceIdentity, ServiceConference, ServiceSubmission, ServiceReview, ServiceNotification}

type JwtConfig struct {
	Secret   string        `env:"JWT_SECRET,required"`
	Issuer   string        `env:"JWT_ISSUER" envDefault:"conference-platform"`
	Audience string        `env:"JWT_AUDIENCE" envDefault:"conference-platform-api"`
	Expiry   time.Duration `env:"JWT_EXPIRY" envDefault:"2h"`
}

type AdminConfig struct {
	Username string `env:"ADMIN_USERNAME,required"`
	Email    string `env:"ADMIN_EMAIL,required"`
	Password string `env:"ADMIN_PASSWORD,required"`
}

type SmtpConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM" envDefault:"no-reply@conference.local"`
}

type UpstreamConfig struct {
	IdentityUrl   string        `env:"IDENTITY_SERVICE_URL"`
	ConferenceUrl string        `env:"CONFERENCE_SERVICE_URL"`
	Timeout       time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"15s"`
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"8000"`
	DatabaseUri string `env:"DATABASE_URI,required"`
	RedisUrl    string `env:"REDIS_URL"`
	StorageDir  string `env:"STORAGE_DIR,required"`
	PublicUrl   string `env:"PUBLIC_URL" envDefault:"http://localhost:3000"`

	LogFile   string `env:"LOG_FILE"`
	AuditLog  string `env:"AUDIT_LOG_FILE"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	MessageLanguage  string `env:"MESSAGE_LANGUAGE" envDefault:"en"`
	MessageOverrides string `env:"MESSAGE_OVERRIDES_FILE"`

	MaxTopics            int           `env:"CFP_MAX_TOPICS" envDefault:"20"`
	MaxUploadBytes       int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	InvitationExpiry     time.Duration `env:"INVITATION_EXPIRY" envDefault:"336h"`
	RateLimitPerMinute   int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	ConferenceCacheTtl   time.Duration `env:"CONFERENCE_CACHE_TTL" envDefault:"5m"`
	AutoMigrate          bool          `env:"AUTO_MIGRATE" envDefault:"true"`
	OpenAiKey            string        `env:"OPENAI_API_KEY"`
	OpenAiModel          string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	SummaryMaxSentences  int           `env:"SUMMARY_MAX_SENTENCES" envDefault:"3"`
	SimilarityMaxResults int           `env:"SIMILARITY_MAX_RESULTS" envDefault:"5"`

	Jwt      JwtConfig      `envPrefix:""`
	Admin    AdminConfig    `envPrefix:""`
	Smtp     SmtpConfig     `envPrefix:""`
	Upstream UpstreamConfig `envPrefix:""`
}

// LoadEnvFile loads variables from an env file before Load is called. Values
// already present in the environment win.
func LoadEnvFile(path string) error {
	slog.Info("loading env from file", "path", path)
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading env file '%v': %w", path, err)
	}
	return nil
}

/**
 * All variables used by the platform are loaded here so that it is clear which
 * variables are exposed and how they are propagated to each service.
 */
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("error parsing env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.MaxTopics < 1 {
		errs = append(errs, fmt.Errorf("CFP_MAX_TOPICS must be positive, got %d", c.MaxTopics))
	}
	if c.MaxUploadBytes < 1 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes))
	}
	if len(c.Jwt.Secret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	return errors.Join(errs...)
}

// ParseServices parses the --services flag value. An empty value selects every service.
func ParseServices(value string) ([]string, error) {
	if strings.TrimSpace(value) == "" || value == "all" {
		return AllServices, nil
	}

	services := []string{}
	for _, name := range strings.Split(value, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if !slices.Contains(AllServices, name) {
			return nil, fmt.Errorf("unknown service '%v', must be one of %v", name, AllServices)
		}
		if !slices.Contains(services, name) {
			services = append(services, name)
		}
	}
	return services, nil
}

// PostgresDsn converts a postgres:// uri into a gorm postgres dsn.
func PostgresDsn(uri string) (string, error) {
	parts, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("error parsing db uri: %w", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	port := parts.Port()
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, port), nil
}
