package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/alfielabs/alfie-backend/internal/carousel"
	"github.com/alfielabs/alfie-backend/internal/conversation"
)

// Client submits generation work to the external render backend. The
// backend answers asynchronously through the render webhook; Submit only
// returns the correlation id.
type Client interface {
	SubmitImage(ctx context.Context, req ImageRequest) (executionID string, err error)
	SubmitCarousel(ctx context.Context, req CarouselRequest) (executionID string, err error)
}

type ImageRequest struct {
	JobID   string                 `json:"-"`
	BrandID string                 `json:"brand_id"`
	Brief   conversation.ImageBrief `json:"brief"`
}

type CarouselRequest struct {
	JobID   string         `json:"-"`
	BrandID string         `json:"brand_id"`
	Plan    *carousel.Plan `json:"plan"`
}

type HTTPClient struct {
	baseURL     string
	apiKey      string
	callbackURL string
	http        *http.Client
}

func NewHTTPClient(baseURL, apiKey, callbackURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:     baseURL,
		apiKey:      apiKey,
		callbackURL: callbackURL,
		http:        &http.Client{Timeout: 30 * time.Second},
	}
}

type submitReq struct {
	Type     string         `json:"type"`
	Callback string         `json:"callback_url"`
	Meta     map[string]any `json:"meta"`
	Spec     any            `json:"spec"`
}

type submitResp struct {
	ExecutionID string `json:"execution_id"`
	ID          string `json:"id"`
	Error       string `json:"error,omitempty"`
}

func (c *HTTPClient) SubmitImage(ctx context.Context, req ImageRequest) (string, error) {
	return c.submit(ctx, "image", req.JobID, req)
}

func (c *HTTPClient) SubmitCarousel(ctx context.Context, req CarouselRequest) (string, error) {
	return c.submit(ctx, "carousel", req.JobID, req)
}

func (c *HTTPClient) submit(ctx context.Context, kind, jobID string, spec any) (string, error) {
	body := submitReq{
		Type:     kind,
		Callback: c.callbackURL,
		// the backend echoes meta back in the webhook; job_id is how the
		// reconciler finds its way home
		Meta: map[string]any{"job_id": jobID},
		Spec: spec,
	}

	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1/renders", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.Errorf("render submit: status %d: %s", resp.StatusCode, string(raw))
	}

	var out submitResp
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", errors.Wrap(err, "decode render response")
	}
	if out.Error != "" {
		return "", errors.New(out.Error)
	}
	if out.ExecutionID != "" {
		return out.ExecutionID, nil
	}
	if out.ID != "" {
		return out.ID, nil
	}
	return "", errors.New("render submit: no execution id in response")
}
