// Package remote talks to a kuvat.fi style gallery over HTTP.
//
// A Client holds one session. Bootstrap must succeed before the session
// cookie is valid; folder passwords are attached to the same session.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/gallery"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/logging"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

// DefaultSite is the gallery mirrored when none is configured.
const DefaultSite = "https://tite.kuvat.fi"

// DefaultVariants are the selector suffixes appended to a file path to
// form its download URLs, smallest first.
var DefaultVariants = []string{"/_small.jpg", "/_full.jpg"}

// maxErrorBody bounds how much of an error response is kept for logging.
const maxErrorBody = 512

// Config configures a Client.
type Config struct {
	// Site is the gallery base URL, without a trailing slash.
	Site string

	// Variants are the selector suffixes for files whose listing entry
	// carries no explicit URLs.
	Variants []string

	Timeout   time.Duration
	UserAgent string

	// Transport overrides the HTTP transport. Tests use it.
	Transport http.RoundTripper
}

// Client is a gallery session.
type Client struct {
	site      *url.URL
	variants  []string
	userAgent string
	http      *http.Client
	log       *logging.Logger
}

// New returns a client with an empty cookie jar.
func New(cfg Config) (*Client, error) {
	site := strings.TrimRight(cfg.Site, "/")
	if site == "" {
		site = DefaultSite
	}
	u, err := url.Parse(site)
	if err != nil {
		return nil, fmt.Errorf("parse site url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("site url %q must be http or https", site)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	variants := cfg.Variants
	if len(variants) == 0 {
		variants = DefaultVariants
	}

	return &Client{
		site:      u,
		variants:  variants,
		userAgent: cfg.UserAgent,
		http: &http.Client{
			Jar:       jar,
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		log: logging.Get("remote"),
	}, nil
}

// Site returns the gallery base URL.
func (c *Client) Site() string {
	return c.site.String()
}

// Bootstrap opens the session by visiting the gallery front page.
func (c *Client) Bootstrap(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, c.endpoint("/kuvat/", nil), nil)
	if err != nil {
		return &types.FatalSetupError{Op: "session bootstrap", Err: err}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	c.log.Debug("session opened", "site", c.Site())
	return nil
}

// FetchTree returns the raw folder tree document.
func (c *Client) FetchTree(ctx context.Context) ([]byte, error) {
	u := c.endpoint("/", url.Values{"type": {"getFolderTree"}})
	return c.fetch(ctx, http.MethodGet, u, nil)
}

// FetchListing returns the listing of one folder.
func (c *Client) FetchListing(ctx context.Context, folderPath string) (*gallery.Listing, error) {
	u := c.endpoint("/", url.Values{"type": {"getFileListJSON"}})
	form := url.Values{"ajaxresponse": {"1"}, "folder": {folderPath}}

	data, err := c.fetch(ctx, http.MethodPost, u, form)
	if err != nil {
		return nil, err
	}
	return gallery.ParseListing(folderPath, data, c.VariantURLs)
}

// AuthenticateFolder submits a folder password for this session.
func (c *Client) AuthenticateFolder(ctx context.Context, folder gallery.Folder, password string) error {
	u := c.endpoint("/", url.Values{
		"q":              {"folderpassword"},
		"page":           {""},
		"id":             {string(folder.ID)},
		"folderpassword": {password},
	})
	_, err := c.fetch(ctx, http.MethodGet, u, nil)
	return err
}

// Download streams the content at rawURL into w.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", rawURL, err)
	}
	return n, nil
}

// VariantURLs derives the download URLs of a file path from the configured
// selector suffixes.
func (c *Client) VariantURLs(filePath string) []string {
	urls := make([]string, 0, len(c.variants))
	for _, suffix := range c.variants {
		u := *c.site
		u.Path = strings.TrimRight(c.site.Path, "/") + filePath + suffix
		u.RawQuery = ""
		urls = append(urls, u.String())
	}
	return urls
}

func (c *Client) endpoint(p string, query url.Values) string {
	u := *c.site
	u.Path = strings.TrimRight(c.site.Path, "/") + p
	u.RawQuery = query.Encode()
	return u.String()
}

// fetch performs a request and returns the whole body of a successful
// response.
func (c *Client) fetch(ctx context.Context, method, rawURL string, form url.Values) ([]byte, error) {
	resp, err := c.do(ctx, method, rawURL, form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return data, nil
}

// do sends a request. Non-2xx responses are closed and returned as
// *types.FetchError.
func (c *Client) do(ctx context.Context, method, rawURL string, form url.Values) (*http.Response, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = redact(urlErr.URL)
			return nil, urlErr
		}
		return nil, fmt.Errorf("%s %s: %w", method, redact(rawURL), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return nil, &types.FetchError{
			URL:        redact(rawURL),
			StatusCode: resp.StatusCode,
			Body:       string(snippet),
		}
	}
	return resp, nil
}

// redact hides folder passwords in URLs that end up in errors and logs.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Has("folderpassword") {
		q.Set("folderpassword", "xxx")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
