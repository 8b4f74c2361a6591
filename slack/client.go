// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bureau-foundation/presence/lib/netutil"
	"github.com/bureau-foundation/presence/lib/secret"
)

// DefaultAPIURL is the Slack Web API base.
const DefaultAPIURL = "https://slack.com/api"

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// APIURL is the Web API base URL. Default DefaultAPIURL.
	APIURL string

	// HTTPClient is used for all requests. If nil, a client with a 10s
	// timeout is used.
	HTTPClient *http.Client

	// RequestsPerMinute bounds outgoing calls. Zero means unlimited.
	RequestsPerMinute int

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client calls the Slack Web API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a Client.
func NewClient(config ClientConfig) (*Client, error) {
	apiURL := config.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	parsed, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("slack: invalid API URL %q: %w", apiURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("slack: API URL %q must be http or https", apiURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(apiURL, "/"),
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger.With("component", "slack"),
	}, nil
}

// ProfileStatus is the status part of a Slack user profile.
type ProfileStatus struct {
	Text  string `json:"status_text"`
	Emoji string `json:"status_emoji"`

	// Expiration is Unix seconds. Zero means the status never expires.
	Expiration int64 `json:"status_expiration"`
}

type profileSetRequest struct {
	Profile ProfileStatus `json:"profile"`
}

// envelope is the shape every Web API response shares.
type envelope struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Warning string `json:"warning"`
}

// SetStatus replaces the profile status of the token's user.
func (c *Client) SetStatus(ctx context.Context, token *secret.Buffer, status ProfileStatus) error {
	if token == nil || token.Len() == 0 {
		return ErrMissingToken
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("slack: waiting for rate limiter: %w", err)
	}

	_, err := c.call(ctx, "users.profile.set", token, profileSetRequest{Profile: status})
	if err != nil {
		return err
	}
	c.logger.Debug("profile status set", "emoji", status.Emoji, "expiration", status.Expiration)
	return nil
}

// call POSTs a JSON body to a Web API method and returns the raw
// response body of a successful call.
func (c *Client) call(ctx context.Context, method string, token *secret.Buffer, requestBody any) ([]byte, error) {
	encoded, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("slack: failed to encode %s request: %w", method, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("slack: failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json; charset=utf-8")
	request.Header.Set("Authorization", "Bearer "+token.String())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("slack: %s failed: %w", method, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("slack: failed to read %s response: %w", method, err)
	}

	retryAfter := parseRetryAfter(response.Header.Get("Retry-After"), time.Now())

	var result envelope
	if jsonErr := json.Unmarshal(responseBody, &result); jsonErr != nil {
		if response.StatusCode >= 200 && response.StatusCode < 300 {
			return nil, fmt.Errorf("slack: malformed %s response: %w", method, jsonErr)
		}
		return nil, &HTTPError{
			StatusCode: response.StatusCode,
			Snippet:    netutil.Snippet(responseBody, 200),
			retryAfter: retryAfter,
		}
	}

	success := response.StatusCode >= 200 && response.StatusCode < 300
	if success && result.OK {
		if result.Warning != "" {
			c.logger.Warn("slack API warning", "method", method, "warning", result.Warning)
		}
		return responseBody, nil
	}

	code := result.Error
	if code == "" {
		if success {
			code = "unknown_error"
		} else {
			return nil, &HTTPError{
				StatusCode: response.StatusCode,
				Snippet:    netutil.Snippet(responseBody, 200),
				retryAfter: retryAfter,
			}
		}
	}
	return nil, &APIError{
		Code:       code,
		Warning:    result.Warning,
		StatusCode: response.StatusCode,
		retryAfter: retryAfter,
	}
}

// parseRetryAfter reads a Retry-After header in either delta-seconds or
// HTTP-date form. Unparseable or past values yield 0.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
