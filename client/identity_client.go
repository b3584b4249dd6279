package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/metrics"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils/logging"
)

type UserInfo struct {
	Id          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	Affiliation string    `json:"affiliation"`
}

// UserDirectory resolves display information for user ids.
//
// LookupUsers never fails. If the identity service cannot be reached or
// answers with an error the result is an empty map, the cause is logged with
// the UPSTREAM_DEGRADED code and identity_lookup_fallback_total is incremented
// for it. Ids the identity service does not know are simply absent from the
// result, which is not counted as a fallback.
type UserDirectory interface {
	LookupUsers(ctx context.Context, token string, ids []uuid.UUID) map[uuid.UUID]UserInfo
}

type IdentityClient struct {
	BaseClient
}

func NewIdentityClient(baseUrl string, timeout time.Duration) *IdentityClient {
	return &IdentityClient{BaseClient: NewBaseClient(baseUrl, timeout)}
}

type batchUsersRequest struct {
	Ids []uuid.UUID `json:"ids"`
}

const (
	fallbackTimeout     = "timeout"
	fallbackUnreachable = "unreachable"
	fallbackStatus      = "status"
	fallbackDecode      = "decode"
)

func fallbackReason(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) || errors.Is(err, ErrNotFound) {
		return fallbackStatus
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fallbackTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fallbackTimeout
	}
	return fallbackUnreachable
}

func degraded(reason string, err error, count int) map[uuid.UUID]UserInfo {
	slog.Warn("identity lookup degraded", "code", logging.UPSTREAM_DEGRADED, "reason", reason, "n_users", count, "error", err)
	metrics.IdentityLookupFallback.WithLabelValues(reason).Inc()
	return map[uuid.UUID]UserInfo{}
}

func (c *IdentityClient) LookupUsers(ctx context.Context, token string, ids []uuid.UUID) map[uuid.UUID]UserInfo {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	if len(unique) == 0 {
		return map[uuid.UUID]UserInfo{}
	}

	res, err := c.request(ctx, token).SetBody(batchUsersRequest{Ids: unique}).Post("/api/users/batch")
	if err := checkResponse(res, err); err != nil {
		return degraded(fallbackReason(err), err, len(unique))
	}

	var users []UserInfo
	if err := json.Unmarshal(res.Body(), &users); err != nil {
		return degraded(fallbackDecode, fmt.Errorf("error parsing batch users response: %w", err), len(unique))
	}

	found := make(map[uuid.UUID]UserInfo, len(users))
	for _, user := range users {
		found[user.Id] = user
	}
	return found
}
