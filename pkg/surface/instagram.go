package surface

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	errs "igmanager/pkg/errors"
	"igmanager/pkg/logger"
	"igmanager/pkg/models"
	"igmanager/pkg/ratelimit"
	"igmanager/pkg/retry"
)

const (
	baseURL          = "https://www.instagram.com"
	profileEndpoint  = "/api/v1/users/web_profile_info/"
	followersPattern = "/api/v1/friendships/%s/followers/"
	followingPattern = "/api/v1/friendships/%s/following/"
	destroyPattern   = "/api/v1/friendships/destroy/%s/"

	// entriesPerFetch mirrors what the platform renders per scroll.
	entriesPerFetch = 12
)

// InstagramOptions configures the Instagram web surface provider.
type InstagramOptions struct {
	UserAgent      string
	RequestTimeout time.Duration
	MaxRetries     int
	// Limiter paces API calls across all surfaces of one provider.
	Limiter ratelimit.Limiter
	// BaseURL overrides the platform URL, for tests.
	BaseURL string
	Logger  logger.Logger
}

// Instagram is a Provider that drives the platform's private web API with
// the session's cookies. Paginated fetches stand in for scroll rounds: each
// Advance renders one more page, content height is the rendered entry count.
type Instagram struct {
	opts InstagramOptions
}

// NewInstagram creates an Instagram surface provider.
func NewInstagram(opts InstagramOptions) *Instagram {
	if opts.BaseURL == "" {
		opts.BaseURL = baseURL
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewTokenBucket(30, time.Minute)
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	return &Instagram{opts: opts}
}

func (ig *Instagram) client(sess *models.Session) *igClient {
	return newIGClient(ig.opts, sess)
}

// ListSurface opens a relationship list surface for the target handle.
func (ig *Instagram) ListSurface(sess *models.Session, target string, kind models.ListKind) ListSurface {
	return &igListSurface{
		client: ig.client(sess),
		target: target,
		kind:   kind,
		chain:  DefaultChain(kind),
		logger: ig.opts.Logger.ForSession(sess.ID).WithField("target", target).WithField("kind", string(kind)),
	}
}

// Actor returns the destructive-action primitive for the session.
func (ig *Instagram) Actor(sess *models.Session) Actor {
	return &igActor{client: ig.client(sess), logger: ig.opts.Logger.ForSession(sess.ID)}
}

// Validate checks the session by fetching the session user's own profile.
func (ig *Instagram) Validate(ctx context.Context, sess *models.Session) error {
	_, err := ig.client(sess).resolveUser(ctx, sess.Username)
	return err
}

// igClient is the HTTP client bound to one session's cookies.
type igClient struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	maxRetries int
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

func newIGClient(opts InstagramOptions, sess *models.Session) *igClient {
	headers := map[string]string{
		"User-Agent":       opts.UserAgent,
		"Accept":           "*/*",
		"Accept-Language":  "en-US,en;q=0.9",
		"X-Requested-With": "XMLHttpRequest",
		"X-IG-App-ID":      "936619743392459",
	}

	var cookies []string
	for _, c := range sess.Cookies {
		cookies = append(cookies, fmt.Sprintf("%s=%s", c.Name, c.Value))
		if c.Name == "csrftoken" {
			headers["X-CSRFToken"] = c.Value
		}
	}
	if len(cookies) > 0 {
		headers["Cookie"] = strings.Join(cookies, "; ")
	}

	return &igClient{
		httpClient: &http.Client{Timeout: opts.RequestTimeout},
		headers:    headers,
		baseURL:    opts.BaseURL,
		maxRetries: opts.MaxRetries,
		limiter:    opts.Limiter,
		logger:     opts.Logger,
	}
}

// fetch performs one paced, retried request and returns the raw body.
func (c *igClient) fetch(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return &errs.Error{Kind: errs.KindUnknown, Message: "failed to build request", Err: err}
		}
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &errs.Error{Kind: errs.KindNetwork, Message: "request failed", Err: err}
		}
		defer resp.Body.Close()

		c.logger.WithFields(map[string]interface{}{
			"method":   method,
			"url":      endpoint,
			"status":   resp.StatusCode,
			"duration": time.Since(start),
		}).Debug("platform request completed")

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return errs.SessionInvalid(fmt.Sprintf("platform returned %d", resp.StatusCode), nil)
		case resp.StatusCode == http.StatusNotFound:
			return &errs.Error{Kind: errs.KindNotFound, Message: "resource not found"}
		case errs.IsRetryableStatusCode(resp.StatusCode) && resp.StatusCode != http.StatusOK:
			return &errs.Error{Kind: errs.KindNetwork, Message: fmt.Sprintf("platform returned %d", resp.StatusCode)}
		case resp.StatusCode != http.StatusOK:
			return &errs.Error{Kind: errs.KindUnknown, Message: fmt.Sprintf("platform returned %d", resp.StatusCode)}
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return &errs.Error{Kind: errs.KindNetwork, Message: "failed to read response", Err: err}
		}
		return nil
	}

	err := retry.Do(ctx, op, &retry.Config{
		MaxAttempts: c.maxRetries,
		Backoff:     retry.DefaultBackoff(),
		RetryIf:     errs.IsRetryable,
		Logger:      c.logger,
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// resolveUser maps a handle to the platform's stable user id.
func (c *igClient) resolveUser(ctx context.Context, handle string) (string, error) {
	q := url.Values{}
	q.Set("username", handle)
	body, err := c.fetch(ctx, http.MethodGet, profileEndpoint, q)
	if err != nil {
		return "", err
	}

	var result struct {
		RequiresToLogin bool `json:"requires_to_login"`
		Data            struct {
			User struct {
				ID string `json:"id"`
			} `json:"user"`
		} `json:"data"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &errs.Error{Kind: errs.KindUnknown, Message: "unparseable profile response", Err: err}
	}
	if result.RequiresToLogin {
		return "", errs.SessionInvalid("profile requires authentication", nil)
	}
	if result.Data.User.ID == "" {
		return "", &errs.Error{Kind: errs.KindNotFound, Message: fmt.Sprintf("user %s not found", handle)}
	}
	return result.Data.User.ID, nil
}

// igListSurface renders one relationship list page by page.
type igListSurface struct {
	client *igClient
	target string
	kind   models.ListKind
	chain  Chain

	mu          sync.Mutex
	userID      string
	cursor      string
	hasMore     bool
	opened      bool
	accounts    []models.Account
	lastPayload []byte
	lastErr     error
	logger      logger.Logger
}

func (s *igListSurface) listPath() string {
	if s.kind == models.ListFollowers {
		return fmt.Sprintf(followersPattern, s.userID)
	}
	return fmt.Sprintf(followingPattern, s.userID)
}

// Open resolves the target and renders the first page.
func (s *igListSurface) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, err := s.client.resolveUser(ctx, s.target)
	if err != nil {
		return err
	}
	s.userID = userID
	s.opened = true
	s.hasMore = true
	return s.renderNext(ctx)
}

// renderNext fetches one more page and folds it into the rendered state.
// Callers hold s.mu.
func (s *igListSurface) renderNext(ctx context.Context) error {
	q := url.Values{}
	q.Set("count", fmt.Sprintf("%d", entriesPerFetch))
	if s.cursor != "" {
		q.Set("max_id", s.cursor)
	}

	payload, err := s.client.fetch(ctx, http.MethodGet, s.listPath(), q)
	if err != nil {
		return err
	}
	s.lastPayload = payload

	page, strategy, err := s.chain.Extract(payload)
	if err != nil {
		// Remember the failure so Entries reports it: the rendered content
		// is unusable no matter how it is probed.
		s.lastErr = err
		s.logger.WithError(err).Warn("no extraction strategy matched rendered content")
		return nil
	}
	s.lastErr = nil

	s.accounts = append(s.accounts, page.Accounts...)
	s.hasMore = page.HasMore
	s.cursor = page.Cursor

	s.logger.WithFields(map[string]interface{}{
		"strategy":  strategy,
		"rendered":  len(s.accounts),
		"has_more":  page.HasMore,
	}).Debug("rendered list page")
	return nil
}

func (s *igListSurface) Entries(ctx context.Context) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastErr != nil {
		return nil, s.lastErr
	}
	out := make([]models.Account, len(s.accounts))
	copy(out, s.accounts)
	return out, nil
}

func (s *igListSurface) Advance(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return fmt.Errorf("surface not opened")
	}
	if !s.hasMore {
		return nil
	}
	return s.renderNext(ctx)
}

func (s *igListSurface) ContentHeight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

func (s *igListSurface) EndOfList() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened && !s.hasMore
}

func (s *igListSurface) Capture() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	capture := map[string]any{
		"target":   s.target,
		"kind":     s.kind,
		"user_id":  s.userID,
		"cursor":   s.cursor,
		"rendered": len(s.accounts),
		"payload":  string(s.lastPayload),
	}
	data, _ := json.MarshalIndent(capture, "", "  ")
	return data
}

// igActor executes unfollow actions over the web API.
type igActor struct {
	client *igClient
	logger logger.Logger
}

func (a *igActor) Unfollow(ctx context.Context, handle string) error {
	userID, err := a.client.resolveUser(ctx, handle)
	if err != nil {
		return err
	}

	body, err := a.client.fetch(ctx, http.MethodPost, fmt.Sprintf(destroyPattern, userID), nil)
	if err != nil {
		return err
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return &errs.Error{Kind: errs.KindUnknown, Message: "unparseable unfollow response", Err: err}
	}
	if result.Status != "ok" {
		return &errs.Error{Kind: errs.KindUnknown, Message: fmt.Sprintf("platform rejected unfollow: status %q", result.Status)}
	}

	a.logger.WithField("target", handle).Info("unfollowed user")
	return nil
}
