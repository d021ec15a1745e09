// Package worker talks to the external video worker that analyzes source
// videos and renders clips.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clipper/clipper-server/internal/project"
	"github.com/clipper/clipper-server/internal/transcript"
)

const DefaultBaseURL = "http://localhost:8000"

var (
	ErrInvalidURL  = errors.New("invalid video url")
	ErrNoVideoID   = errors.New("could not extract video id")
	ErrUnavailable = errors.New("worker unavailable")
)

// Error is a non-2xx response from the worker. Body holds the worker's
// error text.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("worker error: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *Error) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// ExtractVideoID returns the "v" query parameter of rawURL, or the path
// segment after its final slash.
func ExtractVideoID(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	if v := u.Query().Get("v"); v != "" {
		return v, nil
	}

	path := strings.TrimRight(u.Path, "/")
	id := path[strings.LastIndex(path, "/")+1:]
	if id == "" {
		return "", ErrNoVideoID
	}
	return id, nil
}

type AnalyzeResult struct {
	Clips      []project.Clip     `json:"clips"`
	Transcript []transcript.Entry `json:"transcript"`
}

type CaptionStyle struct {
	FontSize  int    `json:"fontSize"`
	FontColor string `json:"fontColor"`
	BgColor   string `json:"bgColor"`
}

type ClipRequest struct {
	VideoID      string             `json:"video_id"`
	StartTime    float64            `json:"start_time"`
	EndTime      float64            `json:"end_time"`
	AspectRatio  string             `json:"aspect_ratio"`
	VideoQuality string             `json:"video_quality"`
	Captions     []transcript.Entry `json:"captions"`
	CaptionStyle CaptionStyle       `json:"caption_style"`
}

// ClipResult is the worker's render response. Raw is passed back to the
// browser unchanged; URL is the rendered artifact, if the worker sent one.
type ClipResult struct {
	Raw json.RawMessage
	URL string
}

// Download is a streamed worker artifact. The caller closes Body.
type Download struct {
	Body          io.ReadCloser
	ContentLength int64
}

type Client interface {
	Analyze(ctx context.Context, videoID string) (*AnalyzeResult, error)
	RenderClip(ctx context.Context, req ClipRequest) (*ClipResult, error)
	Download(ctx context.Context, file string) (*Download, error)
}

// HTTPClient calls the worker's JSON API. A zero timeout leaves calls
// bounded only by the caller's context.
type HTTPClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) Analyze(ctx context.Context, videoID string) (*AnalyzeResult, error) {
	body, err := c.postJSON(ctx, "/analyze", map[string]string{"video_id": videoID})
	if err != nil {
		return nil, err
	}

	var result AnalyzeResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode analyze response: %w", err)
	}
	if result.Clips == nil {
		result.Clips = []project.Clip{}
	}
	if result.Transcript == nil {
		result.Transcript = []transcript.Entry{}
	}

	c.logger.Info("video analyzed",
		"video_id", videoID,
		"clips", len(result.Clips),
		"transcript_entries", len(result.Transcript),
	)
	return &result, nil
}

func (c *HTTPClient) RenderClip(ctx context.Context, req ClipRequest) (*ClipResult, error) {
	c.logger.Info("rendering clip",
		"video_id", req.VideoID,
		"start", req.StartTime,
		"end", req.EndTime,
		"captions", len(req.Captions),
	)

	body, err := c.postJSON(ctx, "/clip", req)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode clip response: %w", err)
	}
	return &ClipResult{Raw: json.RawMessage(body), URL: decoded.URL}, nil
}

func (c *HTTPClient) Download(ctx context.Context, file string) (*Download, error) {
	endpoint := c.baseURL + "/download/" + url.PathEscape(file)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &Error{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return &Download{Body: resp.Body, ContentLength: resp.ContentLength}, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", path, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
