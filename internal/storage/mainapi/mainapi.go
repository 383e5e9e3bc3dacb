// Package mainapi stores session status and clips on the main application API.
package mainapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
)

// The main API names the idle status "active".
const apiStatusIdle = "active"

// Credentials are the caller credentials forwarded to the main API.
type Credentials struct {
	XSRFToken string            `json:"xsrf_token"`
	Cookies   map[string]string `json:"cookies,omitempty"`
}

type credentialsKey struct{}

// WithCredentials returns a context carrying the caller credentials.
func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

// CredentialsFromContext returns the caller credentials of the context.
func CredentialsFromContext(ctx context.Context) (Credentials, bool) {
	c, ok := ctx.Value(credentialsKey{}).(Credentials)
	return c, ok
}

// CredentialsFromRequest extracts the credentials of an incoming request.
func CredentialsFromRequest(r *http.Request) Credentials {
	c := Credentials{
		XSRFToken: r.Header.Get("x-xsrf-token"),
		Cookies:   map[string]string{},
	}
	for _, ck := range r.Cookies() {
		c.Cookies[ck.Name] = ck.Value
	}
	return c
}

// RepositoryConfig is the configuration for the main API repository.
type RepositoryConfig struct {
	BaseURL    string
	ServiceKey string
	HTTPClient *http.Client
	Logger     log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.MainAPI"})
	return nil
}

// Repository implements storage.StatusRepository and storage.ClipRepository on the main
// API. The API has no compare-and-swap, so the status is checked and set in two calls.
type Repository struct {
	baseURL    string
	serviceKey string
	client     *http.Client
	logger     log.Logger
}

// NewRepository returns a new main API repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		baseURL:    cfg.BaseURL,
		serviceKey: cfg.ServiceKey,
		client:     cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

type statusBody struct {
	Status string `json:"status"`
}

// GetStatus returns the status of a project.
func (r *Repository) GetStatus(ctx context.Context, sessionID string) (model.SessionStatus, error) {
	var body statusBody
	if err := r.do(ctx, http.MethodGet, "/projects/"+url.PathEscape(sessionID)+"/status", nil, &body); err != nil {
		return "", fmt.Errorf("could not get project status: %w", err)
	}

	if body.Status == string(model.SessionStatusProcessing) {
		return model.SessionStatusProcessing, nil
	}
	return model.SessionStatusIdle, nil
}

// SetStatus sets the status of a project.
func (r *Repository) SetStatus(ctx context.Context, sessionID string, status model.SessionStatus) error {
	apiStatus := string(status)
	if status == model.SessionStatusIdle {
		apiStatus = apiStatusIdle
	}

	err := r.do(ctx, http.MethodPost, "/projects/"+url.PathEscape(sessionID)+"/status", statusBody{Status: apiStatus}, nil)
	if err != nil {
		return fmt.Errorf("could not set project status: %w", err)
	}

	r.logger.Debugf("Project %s status set to %s", sessionID, apiStatus)
	return nil
}

type saveClipBody struct {
	VideoID     string `json:"video_id"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// SaveClip registers a clip on the project.
func (r *Repository) SaveClip(ctx context.Context, c model.Clip) error {
	body := saveClipBody{VideoID: c.VideoID, URL: c.URL, ContentType: c.ContentType}
	if err := r.do(ctx, http.MethodPost, "/projects/"+url.PathEscape(c.SessionID)+"/save-clip", body, nil); err != nil {
		return fmt.Errorf("could not save clip: %w", err)
	}

	r.logger.Debugf("Clip %s saved on project %s", c.VideoID, c.SessionID)
	return nil
}

func (r *Repository) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("could not marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.serviceKey != "" {
		req.Header.Set("x-local-service-key", r.serviceKey)
	}
	if creds, ok := CredentialsFromContext(ctx); ok {
		req.Header.Set("x-xsrf-token", creds.XSRFToken)
		for name, value := range creds.Cookies {
			req.AddCookie(&http.Cookie{Name: name, Value: value})
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, model.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not decode response: %w", err)
	}
	return nil
}
