package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TrackInfo struct {
	Id   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type DeadlineInfo struct {
	Type string    `json:"type"`
	Date time.Time `json:"date"`
}

// ConferenceInfo is the part of the conference details response other services
// depend on.
type ConferenceInfo struct {
	Id        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Acronym   string         `json:"acronym"`
	Status    string         `json:"status"`
	CreatedBy uuid.UUID      `json:"createdBy"`
	StartDate time.Time      `json:"startDate"`
	EndDate   time.Time      `json:"endDate"`
	Tracks    []TrackInfo    `json:"tracks"`
	Deadlines []DeadlineInfo `json:"deadlines"`
}

func (c ConferenceInfo) HasTrack(trackId uuid.UUID) bool {
	for _, track := range c.Tracks {
		if track.Id == trackId {
			return true
		}
	}
	return false
}

func (c ConferenceInfo) Deadline(deadlineType string) *time.Time {
	for _, d := range c.Deadlines {
		if d.Type == deadlineType {
			date := d.Date
			return &date
		}
	}
	return nil
}

type ConferenceDirectory interface {
	GetConference(ctx context.Context, token string, conferenceId uuid.UUID) (ConferenceInfo, error)
}

type ConferenceClient struct {
	BaseClient
}

func NewConferenceClient(baseUrl string, timeout time.Duration) *ConferenceClient {
	return &ConferenceClient{BaseClient: NewBaseClient(baseUrl, timeout)}
}

// GetConference returns an error wrapping ErrNotFound when the conference does
// not exist. Every other failure is returned as is, there is no fallback.
func (c *ConferenceClient) GetConference(ctx context.Context, token string, conferenceId uuid.UUID) (ConferenceInfo, error) {
	res, err := c.request(ctx, token).Get(fmt.Sprintf("/api/conferences/%v", conferenceId))
	if err := checkResponse(res, err); err != nil {
		return ConferenceInfo{}, err
	}

	var conference ConferenceInfo
	if err := json.Unmarshal(res.Body(), &conference); err != nil {
		return ConferenceInfo{}, fmt.Errorf("error parsing conference response: %w", err)
	}
	return conference, nil
}
