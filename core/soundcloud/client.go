package soundcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"schls/logger"
	"schls/model"
)

const (
	// DefaultAPIBase is the public api-v2 host.
	DefaultAPIBase = "https://api-v2.soundcloud.com"

	// UserAgent mimics a desktop browser; the stream endpoints reject unknown agents.
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36"
)

// TrackStore caches resolved track metadata by track URL.
type TrackStore interface {
	GetTrack(ctx context.Context, trackURL string) (*model.Track, bool)
	SetTrack(ctx context.Context, trackURL string, track *model.Track)
}

// Client talks to the SoundCloud api-v2 endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      TrackStore

	mu       sync.RWMutex
	clientID string
	oauth    string
}

// NewClient creates an API client. oauth may be empty.
func NewClient(clientID, oauth string) *Client {
	return &Client{
		baseURL:  DefaultAPIBase,
		clientID: clientID,
		oauth:    oauth,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetBaseURL points the client at another API host.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// SetTrackStore enables caching of Resolve results.
func (c *Client) SetTrackStore(store TrackStore) {
	c.store = store
}

// HTTPClient exposes the shared HTTP client, e.g. for playlist probing.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// OAuth returns the configured OAuth token, possibly empty.
func (c *Client) OAuth() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.oauth
}

// SetCredentials swaps the client_id and OAuth token used by later requests.
func (c *Client) SetCredentials(clientID, oauth string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientID = clientID
	c.oauth = oauth
}

func (c *Client) credentials() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientID, c.oauth
}

// trackResponse mirrors model.Track with pointers so that required fields can
// be told apart from zero values.
type trackResponse struct {
	ID                 int64       `json:"id"`
	Title              *string     `json:"title"`
	Duration           *int64      `json:"duration"`
	TrackAuthorization string      `json:"track_authorization"`
	ArtworkURL         string      `json:"artwork_url"`
	PermalinkURL       string      `json:"permalink_url"`
	User               model.User  `json:"user"`
	Media              model.Media `json:"media"`
}

// Resolve turns a public track URL into track metadata.
func (c *Client) Resolve(ctx context.Context, trackURL string) (*model.Track, error) {
	if err := ValidateTrackURL(trackURL); err != nil {
		return nil, err
	}

	if c.store != nil {
		if track, ok := c.store.GetTrack(ctx, trackURL); ok {
			logger.Debug("track metadata cache hit", logger.String("url", trackURL))
			return track, nil
		}
	}

	params := url.Values{}
	params.Set("url", trackURL)

	var resp trackResponse
	if err := c.getJSON(ctx, "resolve", c.baseURL+"/resolve", params, &resp); err != nil {
		return nil, err
	}

	if resp.Title == nil || resp.Duration == nil {
		return nil, &ValidationError{
			Field:  "track",
			Value:  trackURL,
			Reason: "response is missing title and/or duration",
		}
	}

	track := &model.Track{
		ID:                 resp.ID,
		Title:              *resp.Title,
		Duration:           *resp.Duration,
		TrackAuthorization: resp.TrackAuthorization,
		ArtworkURL:         resp.ArtworkURL,
		PermalinkURL:       resp.PermalinkURL,
		User:               resp.User,
		Media:              resp.Media,
	}

	logger.Info("track resolved",
		logger.String("url", trackURL),
		logger.String("title", track.Title),
		logger.Int64("durationMs", track.Duration),
		logger.Int("transcodings", len(track.Media.Transcodings)))

	if c.store != nil {
		c.store.SetTrack(ctx, trackURL, track)
	}
	return track, nil
}

// Me returns the account behind the OAuth token.
func (c *Client) Me(ctx context.Context) (*model.Account, error) {
	var account model.Account
	if err := c.getJSON(ctx, "me", c.baseURL+"/me", url.Values{}, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// StreamURL exchanges a transcoding for its playable .m3u8 URL. It makes a
// single attempt.
func (c *Client) StreamURL(ctx context.Context, t model.Transcoding, trackAuthorization string) (string, error) {
	if t.URL == "" {
		return "", &ValidationError{Field: "transcoding url", Reason: "empty"}
	}

	params := url.Values{}
	params.Set("track_authorization", trackAuthorization)

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.getJSON(ctx, "stream url", t.URL, params, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", &UpstreamError{Op: "stream url", URL: t.URL, Err: fmt.Errorf("response has no url field")}
	}
	return resp.URL, nil
}

// getJSON performs an authenticated GET and decodes the JSON body into v.
// client_id is always added to params.
func (c *Client) getJSON(ctx context.Context, op, endpoint string, params url.Values, v any) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return &ValidationError{Field: "url", Value: endpoint, Reason: err.Error()}
	}

	clientID, oauth := c.credentials()

	q := u.Query()
	for k, vals := range params {
		for _, val := range vals {
			q.Add(k, val)
		}
	}
	q.Set("client_id", clientID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &UpstreamError{Op: op, URL: endpoint, Err: err}
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	if oauth != "" {
		req.Header.Set("Authorization", oauth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Op: op, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little of the body for context; the API returns short JSON errors.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Warn("soundcloud request failed",
			logger.String("op", op),
			logger.String("url", endpoint),
			logger.Int("status", resp.StatusCode),
			logger.String("body", string(snippet)))
		return &UpstreamError{Op: op, URL: endpoint, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &UpstreamError{Op: op, URL: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
