package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
)

var ErrAuthenticationRequired = errors.New("authentication required")

// Principal is the caller identity taken from the verified token claims.
type Principal struct {
	UserId uuid.UUID
	Email  string
	Roles  []string
}

func (p Principal) IsAdmin() bool {
	return slices.Contains(p.Roles, schema.RoleSystemAdmin)
}

// HasRole reports whether the caller holds any of roles. System admins hold
// every role.
func (p Principal) HasRole(roles ...string) bool {
	if p.IsAdmin() {
		return true
	}
	for _, role := range roles {
		if slices.Contains(p.Roles, role) {
			return true
		}
	}
	return false
}

func (p Principal) IsChair() bool {
	return p.HasRole(schema.RoleConferenceChair, schema.RoleTrackChair)
}

type requestContextKey string

const principalContextKey requestContextKey = "principal"

func withPrincipal(r *http.Request, p Principal) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), principalContextKey, p))
}

func PrincipalFromContext(r *http.Request) (Principal, error) {
	value := r.Context().Value(principalContextKey)
	if value == nil {
		return Principal{}, ErrAuthenticationRequired
	}
	p, ok := value.(Principal)
	if !ok {
		return Principal{}, fmt.Errorf("invalid value for principal field")
	}
	return p, nil
}

// BearerToken returns the raw token of the request so it can be forwarded on
// service to service calls.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return header[7:]
	}
	return ""
}

func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			p, err := PrincipalFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			if !p.HasRole(roles...) {
				http.Error(w, fmt.Sprintf("user %v requires one of the roles %v", p.UserId, roles), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

func AdminOnly() func(http.Handler) http.Handler {
	return RequireRole(schema.RoleSystemAdmin)
}

func ChairOnly() func(http.Handler) http.Handler {
	return RequireRole(schema.RoleConferenceChair, schema.RoleTrackChair)
}
