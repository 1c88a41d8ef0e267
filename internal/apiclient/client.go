// Package apiclient is the HTTP client for the VisionMark segment API. It
// implements playback.Backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/StudyingHUYANG/VisionMark/internal/model"
)

const (
	userHeader      = "X-User-ID"
	requestIDHeader = "X-Request-ID"

	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// Client talks to one backend. The zero user id sends anonymous requests.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which has a 10s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUserID sets the opaque reference sent with submissions and votes.
func WithUserID(id string) Option {
	return func(c *Client) { c.userID = id }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response. It unwraps to the model error matching
// its status so callers can use errors.Is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return model.ErrNotFound
	case e.Status == http.StatusBadRequest:
		return model.ErrInvalidInterval
	case e.Status == http.StatusTooManyRequests, e.Status >= 500:
		return model.ErrTransportUnavailable
	}
	return nil
}

// ActiveSegments fetches the active set of a video.
func (c *Client) ActiveSegments(ctx context.Context, key model.VideoKey) ([]model.Segment, error) {
	q := url.Values{}
	q.Set("video_id", key.ContentID)
	q.Set("part_id", key.PartID)

	var out model.SegmentsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/segments?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if out.Segments == nil {
		out.Segments = []model.Segment{}
	}
	return out.Segments, nil
}

func (c *Client) Submit(ctx context.Context, req model.SubmitRequest) (*model.SubmitResponse, error) {
	var out model.SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/segments", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Vote returns the segment's recomputed confidence.
func (c *Client) Vote(ctx context.Context, segmentID int64, dir model.Direction) (float64, error) {
	var out model.VoteResponse
	path := "/api/v1/segments/" + strconv.FormatInt(segmentID, 10) + "/vote"
	if err := c.do(ctx, http.MethodPost, path, model.VoteRequest{Direction: dir}, &out); err != nil {
		return 0, err
	}
	return out.Confidence, nil
}

func (c *Client) ReportSkip(ctx context.Context, segmentID int64) error {
	var out model.SkipResponse
	path := "/api/v1/segments/" + strconv.FormatInt(segmentID, 10) + "/skip"
	return c.do(ctx, http.MethodPost, path, nil, &out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(userHeader, c.userID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", model.ErrTransportUnavailable, ctxErr)
		}
		return fmt.Errorf("%w: %w", model.ErrTransportUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", model.ErrTransportUnavailable, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

// IsTransport reports whether err means the backend could not be reached
// or answered with a server-side failure.
func IsTransport(err error) bool {
	return errors.Is(err, model.ErrTransportUnavailable)
}
