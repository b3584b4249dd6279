package services_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
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
)

const (
	adminUsername = "admin123"
	adminEmail    = "admin123@mail.com"
	adminPassword = "admin_password123"
)

type stubMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail error
}

func (m *stubMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *stubMailer) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *stubMailer) messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.sent...)
}

// plentyOfDisk reports a mostly empty disk so uploads never hit the free space
// check on a crowded test machine.
type plentyOfDisk struct {
	storage.Storage
}

func (plentyOfDisk) Usage() (storage.UsageStats, error) {
	return storage.UsageStats{TotalBytes: 100 << 30, FreeBytes: 90 << 30}, nil
}

type testEnv struct {
	api    http.Handler
	db     *gorm.DB
	mailer *stubMailer
	store  storage.Storage
}

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDb, err := db.DB()
	require.NoError(t, err)
	sqlDb.SetMaxOpenConns(1)

	require.NoError(t, migrations.Migrate(db))

	// Cross service calls go over real http, the handler is bound once the
	// platform exists.
	var api http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	jwtManager := auth.NewJwtManager(auth.JwtArgs{
		Secret:   []byte("test-secret-0123456789"),
		Issuer:   "conference-platform",
		Audience: "conference-platform-api",
		Expiry:   time.Hour,
	})

	userAuth, err := auth.NewBasicIdentityProvider(db, jwtManager, auth.BasicProviderArgs{
		AdminUsername: adminUsername,
		AdminEmail:    adminEmail,
		AdminPassword: adminPassword,
	})
	require.NoError(t, err)

	store := plentyOfDisk{storage.NewSharedDisk(t.TempDir())}
	mail := &stubMailer{}

	platform := services.NewPlatform(services.Deps{
		Db:               db,
		Authenticator:    auth.NewAuthenticator(jwtManager, auth.NewAuditLogger(io.Discard)),
		IdentityProvider: userAuth,
		Storage:          store,
		Cache:            cache.NewMemoryCache(),
		Bus:              events.NewLocalBus(),
		Mailer:           mail,
		Summarizer:       summarize.Extractive{MaxSentences: 2},
		Validator:        validation.New(validation.NewCatalog(validation.English)),
		Users:            client.NewIdentityClient(srv.URL, 5*time.Second),
		Conferences:      client.NewConferenceClient(srv.URL, 5*time.Second),
		Options: services.Options{
			MaxTopics:            5,
			MaxUploadBytes:       64 * 1024,
			InvitationExpiry:     time.Hour,
			ConferenceCacheTtl:   time.Minute,
			SimilarityMaxResults: 5,
			PublicUrl:            "http://localhost:3000",
		},
	}, config.AllServices)

	api = platform.Routes()

	return &testEnv{api: api, db: db, mailer: mail, store: store}
}

func (e *testEnv) newClient() testClient {
	return testClient{api: e.api}
}

func (e *testEnv) adminClient(t *testing.T) testClient {
	c := e.newClient()
	require.NoError(t, c.login(adminEmail, adminPassword))
	return c
}

// newUser signs up a user, grants roles as admin and logs in so the token
// carries the roles.
func (e *testEnv) newUser(t *testing.T, username string, roles ...string) testClient {
	c := e.newClient()
	email := username + "@mail.com"
	password := username + "_password"

	_, err := c.signup(username, email, password)
	require.NoError(t, err)

	if len(roles) > 0 {
		require.NoError(t, c.login(email, password))
		admin := e.adminClient(t)
		for _, role := range roles {
			require.NoError(t, admin.addRole(c.userId, role))
		}
	}

	require.NoError(t, c.login(email, password))
	return c
}

func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var rerr *responseError
	if errors.As(err, &rerr) {
		return rerr.status
	}
	return 0
}
