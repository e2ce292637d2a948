package regtank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/msahq/go-verification/core"
)

const defaultRenewBefore = 2 * time.Minute

// HTTPClient is the transport surface the token client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	BaseURL     string
	AccessKey   string
	SecretKey   string
	RenewBefore time.Duration
	HTTPClient  HTTPClient
	Logger      core.Logger
	Now         func() time.Time
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// Client authenticates against the RegTank API and caches the issued bearer
// token until it approaches expiry. Token implements core.TokenSource, so
// callers never see an expired token: a lookup inside the renew window
// re-authenticates before returning.
type Client struct {
	config Config

	mu     sync.Mutex
	cached cachedToken
}

func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, goerrors.New("regtank: base url is required", goerrors.CategoryBadInput).
			WithTextCode(core.ServiceErrorBadInput)
	}
	if strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, goerrors.New("regtank: access key and secret key are required", goerrors.CategoryBadInput).
			WithTextCode(core.ServiceErrorBadInput)
	}

	renewBefore := cfg.RenewBefore
	if renewBefore <= 0 {
		renewBefore = defaultRenewBefore
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Client{
		config: Config{
			BaseURL:     baseURL,
			AccessKey:   strings.TrimSpace(cfg.AccessKey),
			SecretKey:   strings.TrimSpace(cfg.SecretKey),
			RenewBefore: renewBefore,
			HTTPClient:  httpClient,
			Logger:      glog.Ensure(cfg.Logger),
			Now:         now,
		},
	}, nil
}

// Token returns a valid bearer token, re-authenticating when the cached token
// is missing or inside the renew window. The mutex serializes refreshes so
// concurrent callers trigger a single login.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c == nil {
		return "", goerrors.New("regtank: client is not configured", goerrors.CategoryInternal).
			WithTextCode(core.ServiceErrorInternal)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.config.Now().UTC()
	if c.cached.token != "" && c.cached.expiresAt.After(now.Add(c.config.RenewBefore)) {
		return c.cached.token, nil
	}

	issued, err := c.login(ctx)
	if err != nil {
		return "", err
	}
	c.cached = issued
	c.config.Logger.Debug("regtank token refreshed", "expires_at", issued.expiresAt.Format(time.RFC3339))
	return issued.token, nil
}

// Invalidate drops the cached token so the next lookup re-authenticates.
// Useful after a 401 from the screening API.
func (c *Client) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = cachedToken{}
}

type loginRequest struct {
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

func (c *Client) login(ctx context.Context) (cachedToken, error) {
	payload, err := json.Marshal(loginRequest{
		AccessKey: c.config.AccessKey,
		SecretKey: c.config.SecretKey,
	})
	if err != nil {
		return cachedToken{}, goerrors.Wrap(err, goerrors.CategoryInternal, "regtank: encode login request").
			WithTextCode(core.ServiceErrorInternal)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/auth/login", bytes.NewReader(payload))
	if err != nil {
		return cachedToken{}, goerrors.Wrap(err, goerrors.CategoryInternal, "regtank: build login request").
			WithTextCode(core.ServiceErrorInternal)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return cachedToken{}, goerrors.Wrap(err, goerrors.CategoryExternal, "regtank: login request failed").
			WithTextCode(core.ServiceErrorOperationFailed)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return cachedToken{}, goerrors.New(
			fmt.Sprintf("regtank: login rejected with status %d", resp.StatusCode),
			goerrors.CategoryAuth,
		).WithCode(resp.StatusCode).WithTextCode(core.ServiceErrorOperationFailed)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return cachedToken{}, goerrors.New(
			fmt.Sprintf("regtank: login returned status %d", resp.StatusCode),
			goerrors.CategoryExternal,
		).WithCode(resp.StatusCode).WithTextCode(core.ServiceErrorOperationFailed)
	}

	var decoded loginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return cachedToken{}, goerrors.Wrap(err, goerrors.CategoryExternal, "regtank: decode login response").
			WithTextCode(core.ServiceErrorOperationFailed)
	}
	if strings.TrimSpace(decoded.Token) == "" {
		return cachedToken{}, goerrors.New("regtank: login response has no token", goerrors.CategoryExternal).
			WithTextCode(core.ServiceErrorOperationFailed)
	}

	expiresIn := decoded.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = int64(time.Hour / time.Second)
	}
	return cachedToken{
		token:     decoded.Token,
		expiresAt: c.config.Now().UTC().Add(time.Duration(expiresIn) * time.Second),
	}, nil
}

var _ core.TokenSource = (*Client)(nil)
