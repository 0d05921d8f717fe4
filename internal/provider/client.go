// Package provider is the HTTP client for the external background-removal service.
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/clearcut/internal/domain"
	"github.com/timmy/clearcut/internal/logger"
)

// Config holds configuration for the provider client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the provider's /videos API.
type Client struct {
	client  *resty.Client
	baseURL string
}

// CreateRequest describes a job creation call.
type CreateRequest struct {
	Input  domain.VideoInput
	Format domain.OutputFormat
	// CallbackURL is sent as webhook_url when non-empty.
	CallbackURL string
}

// NewClient creates a new provider client.
// Parameters:
//   - cfg: provider configuration including base URL and API key.
//
// Returns:
//   - *Client: initialized client.
func NewClient(cfg *Config) *Client {
	client := resty.New()
	client.SetHeader("X-Api-Key", cfg.APIKey)
	client.SetHeader("Accept", "application/json")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	client.SetTimeout(timeout)

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.unscreen.com/v1.0"
	}

	return &Client{
		client:  client,
		baseURL: baseURL,
	}
}

// CreateJob submits a video for background removal.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: input source, output format and optional callback URL.
//
// Returns:
//   - *Video: the created job as reported by the provider.
//   - error: *domain.SubmissionError on bad input, transport failure or provider rejection.
func (c *Client) CreateJob(ctx context.Context, req CreateRequest) (*Video, error) {
	if !req.Input.HasFile() && !req.Input.HasURL() {
		return nil, &domain.SubmissionError{Err: domain.ErrNoInput}
	}
	if _, ok := domain.ParseOutputFormat(string(req.Format)); !ok {
		return nil, &domain.SubmissionError{Err: fmt.Errorf("%w: %q", domain.ErrInvalidFormat, req.Format)}
	}

	form := map[string]string{
		"format": string(req.Format),
	}
	if req.Format.NeedsBackgroundColor() {
		form["background_color"] = domain.SolidBackgroundColor
	}
	if req.CallbackURL != "" {
		form["webhook_url"] = req.CallbackURL
	}

	var (
		result  Envelope
		apiErr  apiErrorResponse
		request = c.client.R().SetContext(ctx).SetResult(&result).SetError(&apiErr)
	)
	if req.Input.HasFile() {
		if req.Input.HasURL() {
			logger.CtxWarn(ctx, "Both file and URL supplied, submitting the file and ignoring url=%s", req.Input.URL)
		}
		request.SetFileReader("video_file", uploadFilename(req.Input.Filename), bytes.NewReader(req.Input.Data))
	} else {
		form["video_url"] = strings.TrimSpace(req.Input.URL)
	}
	request.SetMultipartFormData(form)

	resp, err := request.Post(c.baseURL + "/videos")
	if err != nil {
		return nil, &domain.SubmissionError{Err: fmt.Errorf("failed to call provider: %w", err)}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, &domain.SubmissionError{
			StatusCode: resp.StatusCode(),
			Err:        errors.New(errorMessage(&apiErr, resp)),
		}
	}
	if result.Data.ID == "" {
		return nil, &domain.SubmissionError{
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("provider response has no job id: %s", string(resp.Body())),
		}
	}

	return &result.Data, nil
}

// GetJob fetches the current status of a job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: provider job ID.
//
// Returns:
//   - *Video: current job state.
//   - error: non-nil on transport failure or non-2xx response.
func (c *Client) GetJob(ctx context.Context, id string) (*Video, error) {
	var result Envelope
	var apiErr apiErrorResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&result).
		SetError(&apiErr).
		Get(c.baseURL + "/videos/{id}")
	if err != nil {
		return nil, fmt.Errorf("failed to call provider: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("provider returned error: %s", errorMessage(&apiErr, resp))
	}
	if result.Data.ID == "" {
		result.Data.ID = id
	}
	return &result.Data, nil
}

// ListVideos returns the jobs the provider knows for this API key.
func (c *Client) ListVideos(ctx context.Context) ([]Video, error) {
	var result listEnvelope
	var apiErr apiErrorResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&apiErr).
		Get(c.baseURL + "/videos")
	if err != nil {
		return nil, fmt.Errorf("failed to call provider: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("provider returned error: %s", errorMessage(&apiErr, resp))
	}
	if result.Data == nil {
		return []Video{}, nil
	}
	return result.Data, nil
}

func errorMessage(apiErr *apiErrorResponse, resp *resty.Response) string {
	if msg := apiErr.message(); msg != "" {
		return fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), msg)
	}
	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
}

// uploadFilename renames the upload to original<ext>, keeping only the extension.
func uploadFilename(name string) string {
	return "original" + strings.ToLower(filepath.Ext(name))
}
