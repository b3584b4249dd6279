package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const maxJsonBody = 1 << 20

// ParseRequestBody decodes a json body into dest. On failure it has already
// written a 400 and the handler should return.
func ParseRequestBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxJsonBody)
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return false
		}
		slog.Warn("rejecting malformed request body", "path", r.URL.Path, "error", err)
		http.Error(w, fmt.Sprintf("malformed request body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func WriteJsonStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("unable to encode response", "status", status, "error", err)
	}
}

func WriteJsonResponse(w http.ResponseWriter, data interface{}) {
	WriteJsonStatus(w, http.StatusOK, data)
}

func WriteSuccess(w http.ResponseWriter) {
	WriteJsonStatus(w, http.StatusOK, struct{}{})
}

func URLParam(r *http.Request, key string) (string, error) {
	if value := chi.URLParam(r, key); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("route is missing the %q parameter", key)
}

func URLParamUUID(r *http.Request, key string) (uuid.UUID, error) {
	value, err := URLParam(r, key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s %q is not a valid id: %w", key, value, err)
	}
	return id, nil
}

// QueryParamUUID returns nil when the parameter is absent.
func QueryParamUUID(r *http.Request, key string) (*uuid.UUID, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("query parameter %s %q is not a valid id: %w", key, value, err)
	}
	return &id, nil
}
