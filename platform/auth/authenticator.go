package auth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
)

// Authenticator builds the middleware chains every service mounts in front of
// its protected routes. It needs no database so services validate tokens on
// their own.
type Authenticator struct {
	jwt      *JwtManager
	auditLog AuditLogger
}

func NewAuthenticator(jwt *JwtManager, auditLog AuditLogger) *Authenticator {
	return &Authenticator{jwt: jwt, auditLog: auditLog}
}

func (a *Authenticator) addPrincipalToContext(optional bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				if optional && errors.Is(err, jwtauth.ErrNoTokenFound) {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			p, err := principalFromClaims(claims)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, withPrincipal(r, p))
		}

		return http.HandlerFunc(handler)
	}
}

func (a *Authenticator) Required() chi.Middlewares {
	return chi.Middlewares{a.jwt.Verifier(), a.jwt.Authenticator(), a.addPrincipalToContext(false), a.auditLog.Middleware}
}

// Optional lets anonymous requests through. A token that is present must still
// be valid.
func (a *Authenticator) Optional() chi.Middlewares {
	return chi.Middlewares{a.jwt.Verifier(), a.addPrincipalToContext(true), a.auditLog.Middleware}
}

func (a *Authenticator) Jwt() *JwtManager {
	return a.jwt
}
