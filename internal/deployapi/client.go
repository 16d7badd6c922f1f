// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package deployapi is a client for the remote deployment service: the blob
// store that keeps file contents by digest, and the deployment endpoints that
// turn a manifest into a published URL.
package deployapi

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
	"strconv"
	"strings"
	"time"

	"go.astrophena.name/siteimport/internal/manifest"

	"go.astrophena.name/base/logger"
	"go.astrophena.name/base/request"

	"golang.org/x/sync/errgroup"
)

// DefaultBase is the API base URL used when none is configured.
const DefaultBase = "https://api.zeit.co"

// Endpoints, relative to the base URL. Each has its own API version.
const (
	filesPath       = "/v2/now/files"
	deploymentsPath = "/v9/now/deployments"
	listPath        = "/v4/now/deployments"
)

// Client talks to the deployment service on behalf of a single account.
type Client struct {
	base        string
	token       string
	httpc       *http.Client
	concurrency int
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests. Nil keeps
// [request.DefaultClient].
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpc = h
		}
	}
}

// WithConcurrency sets how many files [Client.Upload] sends at once. Values
// below 2 upload one file at a time.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		c.concurrency = max(n, 1)
	}
}

// New returns a client for the API at base, authenticated with token. An
// empty base means [DefaultBase].
func New(base, token string, opts ...Option) *Client {
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultBase
	}
	c := &Client{
		base:        strings.TrimRight(base, "/"),
		token:       token,
		httpc:       request.DefaultClient,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: want 2xx, got %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: want 2xx, got %d: %s", e.Op, e.Status, e.Body)
}

// Deployment identifies a created deployment.
type Deployment struct {
	ID    string // opaque identifier assigned by the service
	URL   string // provisional URL, usable right after creation
	Alias string // finalized alias, empty until resolved

	// Set only by [Client.Imported].
	Name    string
	Created time.Time
}

// PublishedURL returns the alias if the deployment has one, and the
// provisional URL otherwise.
func (d Deployment) PublishedURL() string {
	if d.Alias != "" {
		return d.Alias
	}
	return d.URL
}

// Upload sends the contents of every file to the blob store. The first
// failure stops the batch and is returned; files already accepted by the
// service stay there.
func (c *Client) Upload(ctx context.Context, files []manifest.File) error {
	if c.concurrency <= 1 {
		for _, f := range files {
			if err := c.uploadFile(ctx, f); err != nil {
				return err
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, f := range files {
		g.Go(func() error {
			return c.uploadFile(ctx, f)
		})
	}
	return g.Wait()
}

func (c *Client) uploadFile(ctx context.Context, f manifest.File) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+filesPath, strings.NewReader(f.Payload))
	if err != nil {
		return err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("x-content-digest", f.SHA)
	req.Header.Set("x-content-size", strconv.FormatInt(f.Size, 10))
	if f.Binary {
		req.Header.Set("x-content-encoding", "base64")
	}

	if _, err := c.do(req, "uploading "+f.Path); err != nil {
		return err
	}
	logger.Debug(ctx, "uploaded file",
		slog.String("path", f.Path),
		slog.String("sha", f.SHA),
		slog.Int64("size", f.Size),
	)
	return nil
}

type createResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateDeployment submits an encoded manifest. The body is sent as is.
func (c *Client) CreateDeployment(ctx context.Context, body []byte) (Deployment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+deploymentsPath, bytes.NewReader(body))
	if err != nil {
		return Deployment{}, err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	b, err := c.do(req, "creating deployment")
	if err != nil {
		return Deployment{}, err
	}

	var res createResponse
	if err := json.Unmarshal(b, &res); err != nil {
		return Deployment{}, fmt.Errorf("creating deployment: decoding response: %w", err)
	}
	if res.ID == "" || res.URL == "" {
		return Deployment{}, errors.New("creating deployment: response has no id or url")
	}
	return Deployment{ID: res.ID, URL: res.URL}, nil
}

type deploymentResponse struct {
	AliasFinal []string `json:"aliasFinal"`
}

// Alias looks up the finalized alias of the deployment with the given id.
// It makes a single attempt. Any failure, including an empty alias list,
// reports ok == false and is not an error: callers fall back to the
// provisional URL.
func (c *Client) Alias(ctx context.Context, id string) (alias string, ok bool) {
	res, err := request.Make[deploymentResponse](ctx, request.Params{
		Method:     http.MethodGet,
		URL:        c.base + deploymentsPath + "/" + url.PathEscape(id),
		Headers:    c.headers(),
		HTTPClient: c.httpc,
	})
	if err != nil {
		logger.Debug(ctx, "alias lookup failed", slog.String("id", id), slog.Any("err", err))
		return "", false
	}
	if len(res.AliasFinal) == 0 || res.AliasFinal[0] == "" {
		logger.Debug(ctx, "deployment has no alias yet", slog.String("id", id))
		return "", false
	}
	return res.AliasFinal[0], true
}

type listResponse struct {
	Deployments []struct {
		UID     string `json:"uid"`
		Name    string `json:"name"`
		URL     string `json:"url"`
		Created int64  `json:"created"` // milliseconds since the Unix epoch
	} `json:"deployments"`
}

// Imported lists deployments created by imports, that is, those carrying the
// imported=true meta tag, in the order the service returns them (newest
// first).
func (c *Client) Imported(ctx context.Context) ([]Deployment, error) {
	q := url.Values{"meta-imported": {"true"}}
	res, err := request.Make[listResponse](ctx, request.Params{
		Method:     http.MethodGet,
		URL:        c.base + listPath + "?" + q.Encode(),
		Headers:    c.headers(),
		HTTPClient: c.httpc,
	})
	if err != nil {
		return nil, fmt.Errorf("listing imports: %w", err)
	}

	deps := make([]Deployment, 0, len(res.Deployments))
	for _, d := range res.Deployments {
		dep := Deployment{ID: d.UID, URL: d.URL, Name: d.Name}
		if d.Created > 0 {
			dep.Created = time.UnixMilli(d.Created).UTC()
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

func (c *Client) authorize(req *http.Request) {
	for k, v := range c.headers() {
		req.Header.Set(k, v)
	}
}

// headers returns the headers every request carries. Without a token the
// requests go out unauthenticated.
func (c *Client) headers() map[string]string {
	if c.token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.token}
}

// do sends req and returns the response body if the status is 2xx.
func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", op, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{
			Op:     op,
			Status: res.StatusCode,
			Body:   strings.TrimSpace(string(b)),
		}
	}
	return b, nil
}
