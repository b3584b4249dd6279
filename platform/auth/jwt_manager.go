package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
)

const (
	userIdKey = "user_id"
	emailKey  = "email"
	rolesKey  = "roles"
)

type JwtArgs struct {
	Secret   []byte
	Issuer   string
	Audience string
	Expiry   time.Duration
}

// JwtManager signs and verifies the bearer tokens shared by every service.
// Tokens must carry the configured issuer and audience.
type JwtManager struct {
	auth     *jwtauth.JWTAuth
	issuer   string
	audience string
	expiry   time.Duration
}

func NewJwtManager(args JwtArgs) *JwtManager {
	expiry := args.Expiry
	if expiry == 0 {
		expiry = 2 * time.Hour
	}
	return &JwtManager{
		auth: jwtauth.New(
			"HS256", args.Secret, nil,
			jwt.WithIssuer(args.Issuer),
			jwt.WithAudience(args.Audience),
			jwt.WithAcceptableSkew(30*time.Second),
		),
		issuer:   args.Issuer,
		audience: args.Audience,
		expiry:   expiry,
	}
}

func (m *JwtManager) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verifier(m.auth)
}

func (m *JwtManager) Authenticator() func(http.Handler) http.Handler {
	return jwtauth.Authenticator(m.auth)
}

func (m *JwtManager) CreateUserJwt(user schema.User) (string, error) {
	now := time.Now()
	claims := map[string]interface{}{
		userIdKey:         user.Id.String(),
		emailKey:          user.Email,
		rolesKey:          user.RoleNames(),
		jwt.IssuerKey:     m.issuer,
		jwt.AudienceKey:   m.audience,
		jwt.IssuedAtKey:   now,
		jwt.ExpirationKey: now.Add(m.expiry),
	}
	_, token, err := m.auth.Encode(claims)
	if err != nil {
		slog.Error("error generating jwt", "error", err)
		return "", fmt.Errorf("error generating access token: %w", err)
	}
	return token, nil
}

func principalFromClaims(claims map[string]interface{}) (Principal, error) {
	rawId, ok := claims[userIdKey].(string)
	if !ok {
		return Principal{}, fmt.Errorf("invalid token: unable to locate key %v in claims", userIdKey)
	}

	userId, err := uuid.Parse(rawId)
	if err != nil {
		return Principal{}, fmt.Errorf("invalid user uuid '%v': %w", rawId, err)
	}

	email, _ := claims[emailKey].(string)

	var roles []string
	switch v := claims[rolesKey].(type) {
	case []string:
		roles = v
	case []interface{}:
		for _, role := range v {
			if s, ok := role.(string); ok {
				roles = append(roles, s)
			}
		}
	}

	return Principal{UserId: userId, Email: email, Roles: roles}, nil
}
