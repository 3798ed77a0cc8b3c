// Package jobsearch finds job postings relevant to a candidate through a
// sequence of progressively broader searches.
package jobsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Query struct {
	Keywords string `json:"keywords"`
	Location string `json:"location,omitempty"`
}

func (q Query) String() string {
	if q.Location == "" {
		return q.Keywords
	}
	return q.Keywords + " in " + q.Location
}

type Posting struct {
	ExternalID  string          `json:"external_id"`
	Title       string          `json:"title"`
	Company     string          `json:"company"`
	Location    string          `json:"location"`
	URL         string          `json:"url"`
	Description string          `json:"description"`
	PostedAt    *time.Time      `json:"posted_at,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// Source is one job search backend.
type Source interface {
	Search(ctx context.Context, q Query) ([]Posting, error)
	Name() string
}

// HTTPSource talks to a JSearch-compatible API:
// GET {base}/search?query=...&page=1&num_pages=1 with an API key header.
type HTTPSource struct {
	baseURL    string
	apiKey     string
	apiHost    string
	httpClient *http.Client
	maxElapsed time.Duration
}

func NewHTTPSource(baseURL, apiKey, apiHost string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiHost:    apiHost,
		httpClient: &http.Client{Timeout: timeout},
		maxElapsed: 20 * time.Second,
	}
}

func (s *HTTPSource) Name() string { return "jsearch" }

type jsearchResponse struct {
	Data []json.RawMessage `json:"data"`
}

type jsearchJob struct {
	ID          string `json:"job_id"`
	Title       string `json:"job_title"`
	Employer    string `json:"employer_name"`
	City        string `json:"job_city"`
	State       string `json:"job_state"`
	Country     string `json:"job_country"`
	IsRemote    bool   `json:"job_is_remote"`
	ApplyLink   string `json:"job_apply_link"`
	Description string `json:"job_description"`
	PostedAtUTC string `json:"job_posted_at_datetime_utc"`
}

func (s *HTTPSource) Search(ctx context.Context, q Query) ([]Posting, error) {
	params := url.Values{}
	params.Set("query", q.String())
	params.Set("page", "1")
	params.Set("num_pages", "1")
	endpoint := s.baseURL + "/search?" + params.Encode()

	var body []byte
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if s.apiKey != "" {
			req.Header.Set("X-RapidAPI-Key", s.apiKey)
		}
		if s.apiHost != "" {
			req.Header.Set("X-RapidAPI-Host", s.apiHost)
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("job search status %d", resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("job search status %d", resp.StatusCode))
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		return err
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 300 * time.Millisecond
	expo.MaxElapsedTime = s.maxElapsed
	if err := backoff.Retry(call, backoff.WithContext(expo, ctx)); err != nil {
		return nil, err
	}

	var parsed jsearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode job search response: %w", err)
	}

	out := make([]Posting, 0, len(parsed.Data))
	for _, raw := range parsed.Data {
		var j jsearchJob
		if err := json.Unmarshal(raw, &j); err != nil {
			continue
		}
		p := Posting{
			ExternalID:  j.ID,
			Title:       strings.TrimSpace(j.Title),
			Company:     strings.TrimSpace(j.Employer),
			Location:    joinLocation(j),
			URL:         j.ApplyLink,
			Description: j.Description,
			Raw:         raw,
		}
		if t, err := time.Parse(time.RFC3339, j.PostedAtUTC); err == nil {
			p.PostedAt = &t
		}
		if p.ExternalID == "" {
			p.ExternalID = p.URL
		}
		out = append(out, p)
	}
	return out, nil
}

func joinLocation(j jsearchJob) string {
	if j.IsRemote {
		return "Remote"
	}
	var parts []string
	for _, s := range []string{j.City, j.State, j.Country} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

var errNoSource = errors.New("no job source configured")
