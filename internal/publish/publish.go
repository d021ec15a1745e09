// Package publish uploads rendered clips to the user's video-hosting
// channel.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/clipper/clipper-server/internal/logging"
)

const (
	DefaultTitle       = "New Video"
	DefaultDescription = "Uploaded via Clipper"
	PrivacyPublic      = "public"
)

var ErrInsufficientScope = errors.New("insufficient oauth scope for upload")

type Video struct {
	URL         string
	Title       string
	Description string
}

type Result struct {
	VideoID  string `json:"videoId"`
	VideoURL string `json:"videoUrl"`
}

type Publisher interface {
	Publish(ctx context.Context, token string, v Video) (*Result, error)
}

// YouTubePublisher streams a rendered clip from its URL into a
// videos.insert upload.
type YouTubePublisher struct {
	httpClient *http.Client
	options    []option.ClientOption
	logger     *slog.Logger
}

// NewYouTubePublisher returns a publisher. Extra client options are
// appended after the per-request token source.
func NewYouTubePublisher(logger *slog.Logger, opts ...option.ClientOption) *YouTubePublisher {
	return &YouTubePublisher{
		httpClient: &http.Client{},
		options:    opts,
		logger:     logger,
	}
}

func (p *YouTubePublisher) Publish(ctx context.Context, token string, v Video) (*Result, error) {
	if v.Title == "" {
		v.Title = DefaultTitle
	}
	if v.Description == "" {
		v.Description = DefaultDescription
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid video url: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch video: %s", resp.Status)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, p.options...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube client: %w", err)
	}

	p.logger.Info("uploading video",
		"title", v.Title,
		"size", logging.Bytes(resp.ContentLength),
		"token", logging.SanitizeToken(token),
	)

	upload := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       v.Title,
			Description: v.Description,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: PrivacyPublic,
		},
	}

	inserted, err := svc.Videos.Insert([]string{"snippet", "status"}, upload).
		Media(resp.Body).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(err)
	}

	p.logger.Info("video uploaded", "video_id", inserted.Id)
	return &Result{
		VideoID:  inserted.Id,
		VideoURL: "https://www.youtube.com/watch?v=" + inserted.Id,
	}, nil
}

// classify maps scope rejections to ErrInsufficientScope.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusForbidden {
		return fmt.Errorf("%w: %v", ErrInsufficientScope, err)
	}
	if strings.Contains(err.Error(), "insufficient authentication scopes") {
		return fmt.Errorf("%w: %v", ErrInsufficientScope, err)
	}
	return fmt.Errorf("youtube upload: %w", err)
}
