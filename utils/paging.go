package utils

import (
	"fmt"
	"net/http"
	"strconv"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based page request taken from ?page=&pageSize=.
type Page struct {
	Page     int
	PageSize int
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func positiveQueryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return n, nil
}

// ParsePage clamps pageSize to MaxPageSize rather than rejecting it.
func ParsePage(r *http.Request) (Page, error) {
	page, err := positiveQueryInt(r, "page", 1)
	if err != nil {
		return Page{}, err
	}
	size, err := positiveQueryInt(r, "pageSize", DefaultPageSize)
	if err != nil {
		return Page{}, err
	}
	return Page{Page: page, PageSize: min(size, MaxPageSize)}, nil
}

type PagedResponse[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}
