// Package handoff forwards a finished prompt to the external image app.
//
// The image app is probed over HTTP first. When it is installed the prompt is
// written to a file the app reads on start, and the caller is sent to the app;
// otherwise the caller is sent to the app store page.
package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultAppURL    = "https://catimg.kagee.heiyu.space/"
	DefaultStoreURL  = "lzc://appstore?path=detail/cloud.lazycat.aipod.catimg"
	DefaultTimeout   = 5 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (compatible; LazyCAT-App-Checker/1.0)"

	// DeployUIDEnv names the user whose home directory receives the prompt file.
	DeployUIDEnv = "LAZYCAT_APP_DEPLOY_UID"
)

// Reason explains where the caller is being redirected.
type Reason string

const (
	ReasonNotInstalled Reason = "app_not_installed"
	ReasonPromptSaved  Reason = "prompt_saved"
)

// maxProbeBody bounds how much of the probe page is searched for markers.
const maxProbeBody = 64 << 10

// Page fragments the platform serves in place of an app that is not installed.
var notInstalledMarkers = []string{
	"<title>无法打开</title>",
	"应用未安装, 请前往应用商店安装",
	"state_forbidden.svg",
}

// DefaultPromptPath returns the prompt file location for the deploying user.
func DefaultPromptPath() string {
	uid := os.Getenv(DeployUIDEnv)
	if uid == "" {
		uid = "default"
	}
	return filepath.Join("/lzcapp/run/mnt/home", uid, ".catimg_prompt.json")
}

// Config configures a Client. Zero values take the defaults above.
type Config struct {
	AppURL     string
	StoreURL   string
	PromptPath string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Result tells the caller which URL to open next.
type Result struct {
	RedirectURL string `json:"redirect_url"`
	Reason      Reason `json:"reason"`
}

// Message is a short human-readable description of the result.
func (r *Result) Message() string {
	if r.Reason == ReasonNotInstalled {
		return "image app is not installed, opening the app store"
	}
	return "prompt saved, opening the image app"
}

// Prompt is the content of the prompt file.
type Prompt struct {
	Prompt    string `json:"prompt"`
	Timestamp int64  `json:"timestamp"`
}

// Client submits prompts to the image app.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.AppURL == "" {
		cfg.AppURL = DefaultAppURL
	}
	if cfg.StoreURL == "" {
		cfg.StoreURL = DefaultStoreURL
	}
	if cfg.PromptPath == "" {
		cfg.PromptPath = DefaultPromptPath()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: httpClient, logger: cfg.Logger, now: time.Now}
}

// PromptPath returns where prompts are written.
func (c *Client) PromptPath() string {
	return c.cfg.PromptPath
}

// Submit forwards text to the image app. Both outcomes, not installed and
// saved, are successful results; only a failure to write the prompt file is
// returned as an error.
func (c *Client) Submit(ctx context.Context, text string) (*Result, error) {
	if !c.Installed(ctx) {
		c.logger.Info("image app not installed, redirecting to store")
		return &Result{RedirectURL: c.cfg.StoreURL, Reason: ReasonNotInstalled}, nil
	}

	data, err := json.Marshal(Prompt{
		Prompt:    strings.TrimSpace(text),
		Timestamp: c.now().UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode prompt: %w", err)
	}
	if err := os.WriteFile(c.cfg.PromptPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write prompt file: %w", err)
	}

	c.logger.Info("prompt saved", "path", c.cfg.PromptPath, "length", len(text))
	return &Result{RedirectURL: c.cfg.AppURL, Reason: ReasonPromptSaved}, nil
}

// Installed probes the app URL. A failed request, a non-2xx status, or the
// platform's not-installed page all count as not installed.
func (c *Client) Installed(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.AppURL, nil)
	if err != nil {
		c.logger.Warn("invalid image app url", "url", c.cfg.AppURL, "error", err)
		return false
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("image app probe failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("image app probe returned non-2xx", "status", resp.StatusCode)
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return false
	}
	page := string(body)
	for _, marker := range notInstalledMarkers {
		if strings.Contains(page, marker) {
			return false
		}
	}
	return true
}
