// Package nasa talks to the upstream Astronomy Picture of the Day API.
package nasa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"apod-explorer/internal/domain"
)

const (
	DefaultBaseURL = "https://api.nasa.gov/planetary/apod"
	DemoKey        = "DEMO_KEY"

	maxBodyBytes = 1 << 20
)

var (
	// ErrNoEntry means the provider has no picture for the requested date.
	ErrNoEntry = errors.New("no picture published for this date")
	// ErrNotConfigured means no API key was provided.
	ErrNotConfigured = errors.New("nasa api key is not configured")
)

// UpstreamError describes a failed call to the provider. Status is zero when
// no response was received at all.
type UpstreamError struct {
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("nasa api unreachable: %v", e.Err)
	}
	return fmt.Sprintf("nasa api status %d: %s", e.Status, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Result is a decoded picture plus the provider's original JSON body.
type Result struct {
	Picture domain.Picture
	Raw     json.RawMessage
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  logrus.FieldLogger
}

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	logger  logrus.FieldLogger
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.APIKey == DemoKey {
		cfg.Logger.Warn("using DEMO_KEY for the nasa api; rate limits are strict")
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  cfg.Logger,
	}
}

// FetchDailyImage returns the picture for date (YYYY-MM-DD), or today's when date is empty.
func (c *Client) FetchDailyImage(ctx context.Context, date string) (*Result, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse nasa base url: %w", err)
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	if date != "" {
		q.Set("date", date)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build nasa request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	logger := c.logger.WithField("date", dateOrToday(date))
	logger.Debug("calling nasa api")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Message: "read body", Err: err}
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNoEntry, upstreamMessage(body, resp.Status))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := upstreamMessage(body, resp.Status)
		logger.WithField("status", resp.StatusCode).Warnf("nasa api error: %s", msg)
		return nil, &UpstreamError{Status: resp.StatusCode, Message: msg}
	}

	var pic domain.Picture
	if err := json.Unmarshal(body, &pic); err != nil {
		return nil, &UpstreamError{Status: http.StatusBadGateway, Message: "invalid json from provider", Err: err}
	}
	logger.Debugf("nasa api returned %q", pic.Title)

	return &Result{Picture: pic, Raw: json.RawMessage(body)}, nil
}

// upstreamMessage extracts the provider's own explanation from an error body.
func upstreamMessage(body []byte, fallback string) string {
	var payload struct {
		Msg   string `json:"msg"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Msg != "" {
			return payload.Msg
		}
		if payload.Error.Message != "" {
			return payload.Error.Message
		}
	}
	return fallback
}

func dateOrToday(date string) string {
	if date == "" {
		return "today"
	}
	return date
}
