// Package api is the client side of the HTTP API: auth, profile and picture calls.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"apod-explorer/internal/domain"
)

// ErrNoEntry reports that the provider published nothing for the requested date.
var ErrNoEntry = errors.New("no picture for this date")

type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  logrus.FieldLogger
}

// Client talks to the API server. A default bearer token, once set, is sent
// with every authenticated request.
type Client struct {
	http    *http.Client
	baseURL string
	logger  logrus.FieldLogger

	mu    sync.RWMutex
	token string
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  cfg.Logger,
	}
}

// SetToken installs the default Authorization header. An empty token removes it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// ProfilePatch holds the fields a profile update returned. Nil fields were not
// returned and must not overwrite what the caller already knows.
type ProfilePatch struct {
	ID        *string `json:"id"`
	Email     *string `json:"email"`
	Name      *string `json:"name"`
	CreatedAt *string `json:"createdAt"`
	AvatarURL *string `json:"avatarUrl"`
	Msg       string  `json:"msg"`
}

// Apply merges the returned fields into p.
func (p Profile) Apply(patch ProfilePatch) Profile {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.ID, patch.ID)
	set(&p.Email, patch.Email)
	set(&p.Name, patch.Name)
	set(&p.CreatedAt, patch.CreatedAt)
	set(&p.AvatarURL, patch.AvatarURL)
	return p
}

type ProfileUpdate struct {
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
}

func (c *Client) Register(ctx context.Context, email, password, name string) (string, error) {
	var out struct {
		Msg string `json:"msg"`
	}
	body := map[string]string{"email": email, "password": password, "name": name}
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", body, &out); err != nil {
		return "", err
	}
	return out.Msg, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("login response carried no token")
	}
	return out.Token, nil
}

// Profile loads the profile for token, or for the default token when empty.
func (c *Client) Profile(ctx context.Context, token string) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodGet, "/users/profile", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*ProfilePatch, error) {
	var out ProfilePatch
	if err := c.do(ctx, http.MethodPut, "/users/profile", "", update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAccount(ctx context.Context) (string, error) {
	var out struct {
		Msg string `json:"msg"`
	}
	if err := c.do(ctx, http.MethodDelete, "/auth/user", "", nil, &out); err != nil {
		return "", err
	}
	return out.Msg, nil
}

// Picture fetches the picture for date (YYYY-MM-DD), or today's when date is empty.
func (c *Client) Picture(ctx context.Context, date string) (*domain.Picture, error) {
	path := "/nasa/apod"
	if date != "" {
		path += "?" + url.Values{"date": {date}}.Encode()
	}
	var out domain.Picture
	err := c.do(ctx, http.MethodGet, path, "", nil, &out)
	var respErr *ResponseError
	if errors.As(err, &respErr) && respErr.Status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %w", ErrNoEntry, err)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token == "" {
		token = c.Token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	logger := c.logger.WithFields(logrus.Fields{"method": method, "path": path})
	logger.Debug("api request")

	resp, err := c.http.Do(req)
	if err != nil {
		logger.WithError(err).Warn("api request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respErr := newResponseError(resp.StatusCode, data)
		logger.WithField("status", resp.StatusCode).Debugf("api error: %s", respErr.Message(""))
		return respErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
