// Package ctftime implements the EventClient port against the CTFtime REST API.
package ctftime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ctfrelay/ctfrelay/internal/domain/model"
	"github.com/ctfrelay/ctfrelay/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EventClient = (*Client)(nil)

// maxLogoBytes caps logo downloads so a misconfigured upstream cannot make
// the bot buffer an arbitrarily large file as a chat attachment.
const maxLogoBytes = 8 << 20

// Client implements the driven.EventClient port over the CTFtime HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewClient creates a CTFtime API client with an in-memory HTTP response
// cache (ETag-based conditional requests) and a bounded request timeout so
// no adapter call can hang a command.
func NewClient(baseURL, userAgent string) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   15 * time.Second,
		},
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: userAgent,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, userAgent string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  userAgent,
	}
}

// eventJSON is the wire representation of a single CTFtime event.
type eventJSON struct {
	ID           int64         `json:"id"`
	Title        string        `json:"title"`
	URL          string        `json:"url"`
	Format       string        `json:"format"`
	Description  string        `json:"description"`
	Start        string        `json:"start"`
	Finish       string        `json:"finish"`
	Restrictions string        `json:"restrictions"`
	Onsite       bool          `json:"onsite"`
	Logo         string        `json:"logo"`
	Duration     *durationJSON `json:"duration"`
}

type durationJSON struct {
	Days  int `json:"days"`
	Hours int `json:"hours"`
}

// ListEvents fetches up to limit events in the [start, finish] window
// (epoch seconds), preserving the order the API returned them.
func (c *Client) ListEvents(ctx context.Context, limit int, start, finish int64) ([]model.Event, error) {
	url := fmt.Sprintf("%s/events/?limit=%d&start=%d&finish=%d", c.baseURL, limit, start, finish)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var wire []eventJSON
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decoding event list: %w", err)
	}

	events := make([]model.Event, 0, len(wire))
	for _, ev := range wire {
		events = append(events, mapEvent(ev))
	}

	slog.Debug("ctftime events listed", "count", len(events), "start", start, "finish", finish)

	return events, nil
}

// GetEvent fetches a single event by id. A 404 surfaces as a *driven.StatusError
// with NotFound() == true.
func (c *Client) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	url := fmt.Sprintf("%s/events/%d/", c.baseURL, id)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var wire eventJSON
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decoding event %d: %w", id, err)
	}

	ev := mapEvent(wire)
	return &ev, nil
}

// FetchLogo downloads an event thumbnail. Non-2xx answers surface as a
// *driven.StatusError; callers treat any failure as "no attachment".
func (c *Client) FetchLogo(ctx context.Context, logoURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, logoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building logo request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching logo %s: %w", logoURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &driven.StatusError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLogoBytes))
	if err != nil {
		return nil, fmt.Errorf("reading logo %s: %w", logoURL, err)
	}

	return data, nil
}

// get performs a GET against the API and returns the response body, mapping
// any non-200 status to a *driven.StatusError.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &driven.StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}

	return body, nil
}

// mapEvent converts a wire event to a domain model Event.
func mapEvent(ev eventJSON) model.Event {
	out := model.Event{
		ID:           ev.ID,
		Title:        ev.Title,
		URL:          ev.URL,
		Format:       ev.Format,
		Description:  ev.Description,
		Start:        ev.Start,
		Finish:       ev.Finish,
		Restrictions: ev.Restrictions,
		Onsite:       ev.Onsite,
		Logo:         ev.Logo,
	}

	if ev.Duration != nil {
		out.Duration = &model.Duration{Days: ev.Duration.Days, Hours: ev.Duration.Hours}
	}

	return out
}
