package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clipper/clipper-server/internal/logging"
)

const DefaultClerkAPIURL = "https://api.clerk.com"

// APIError is a non-2xx response from the auth provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth provider request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

type oauthToken struct {
	Token    string `json:"token"`
	Provider string `json:"provider"`
}

// ClerkClient reads linked OAuth tokens from the auth provider's backend
// API using the instance secret key.
type ClerkClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClerkClient(baseURL, secretKey string, logger *slog.Logger) *ClerkClient {
	if baseURL == "" {
		baseURL = DefaultClerkAPIURL
	}
	return &ClerkClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

func (c *ClerkClient) GoogleToken(ctx context.Context, userID string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/users/%s/oauth_access_tokens/oauth_google", c.baseURL, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("oauth token lookup failed",
			"user_id", userID,
			"status", resp.StatusCode,
			"key", logging.SanitizeToken(c.secretKey),
		)
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	tokens, err := decodeTokens(body)
	if err != nil {
		return "", err
	}
	for _, t := range tokens {
		if t.Token != "" {
			return t.Token, nil
		}
	}
	return "", ErrNoLinkedToken
}

// decodeTokens accepts both the bare list and the paginated
// {"data": [...]} envelope.
func decodeTokens(body []byte) ([]oauthToken, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var list []oauthToken
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("decode oauth tokens: %w", err)
		}
		return list, nil
	}

	var page struct {
		Data []oauthToken `json:"data"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode oauth tokens: %w", err)
	}
	return page.Data, nil
}

// StubTokenSource is used when no auth provider is configured.
type StubTokenSource struct {
	logger *slog.Logger
}

func NewStubTokenSource(logger *slog.Logger) *StubTokenSource {
	return &StubTokenSource{logger: logger}
}

func (s *StubTokenSource) GoogleToken(ctx context.Context, userID string) (string, error) {
	s.logger.Info("identity stub: oauth token requested", "user_id", userID)
	return "", ErrNoLinkedToken
}
