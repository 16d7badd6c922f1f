// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package server exposes imports over HTTP.

# Endpoints

	POST /import   start an import and wait for it to finish
	GET  /imports  list earlier imports
	GET  /healthz  liveness check
	GET  /metrics  Prometheus metrics

An import request is a JSON object:

	{"url": "https://example.com", "token": "…", "debug": false}

Instead of a token, a request can carry an OAuth authorization code in the
"code" field. The server exchanges it for a token when it is configured with
client credentials.

A URL without a scheme, such as "example.com", is treated as http.

The response is either {"url": "…"} with the published URL, or
{"error": "…"} with a short message. When the request sets "debug", the
message also carries the underlying error.

Listing imports needs the token in the Authorization header:

	GET /imports
	Authorization: Bearer …

	{"imports": [{"id": "…", "name": "example-com", "url": "…", "created": "…"}]}
*/
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.astrophena.name/siteimport/internal/deployapi"
	"go.astrophena.name/siteimport/internal/importer"

	"go.astrophena.name/base/logger"
	"go.astrophena.name/base/request"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultExchangeURL is the OAuth token endpoint used when none is
// configured.
const DefaultExchangeURL = "https://api.zeit.co/v2/oauth/access_token"

// maxRequestSize limits the size of an import request body.
const maxRequestSize = 64 << 10

// Config configures a [Server].
type Config struct {
	// API is the base URL of the deployment service. If empty,
	// deployapi.DefaultBase is used.
	API string
	// StagingRoot is where every import gets its own staging directory. If
	// empty, the system temporary directory is used.
	StagingRoot string
	// Fetcher downloads sites. It is required.
	Fetcher importer.Fetcher
	// HTTPClient is used for requests to the deployment service and the
	// OAuth token endpoint. If nil, request.DefaultClient is used.
	HTTPClient *http.Client
	// Concurrency is the number of files uploaded at once.
	Concurrency int
	// Target is the deployment target.
	Target string
	// Minify minifies web assets before deploying them.
	Minify bool
	// KeepStaging leaves staging directories in place after imports.
	KeepStaging bool

	// OAuth client credentials. Without ClientID and ClientSecret, requests
	// that carry a code instead of a token are rejected.
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// ExchangeURL is the OAuth token endpoint. If empty, DefaultExchangeURL
	// is used.
	ExchangeURL string
}

// Server handles import requests.
type Server struct {
	c    Config
	mux  *http.ServeMux
	reg  *prometheus.Registry
	metr *metrics
}

// New returns a new Server.
func New(c *Config) *Server {
	s := &Server{
		c:   *c,
		mux: http.NewServeMux(),
		reg: prometheus.NewRegistry(),
	}
	if s.c.HTTPClient == nil {
		s.c.HTTPClient = request.DefaultClient
	}
	if s.c.ExchangeURL == "" {
		s.c.ExchangeURL = DefaultExchangeURL
	}
	if s.c.StagingRoot == "" {
		s.c.StagingRoot = os.TempDir()
	}
	s.metr = newMetrics(s.reg)

	s.mux.HandleFunc("POST /import", s.instrument("/import", s.handleImport))
	s.mux.HandleFunc("GET /imports", s.instrument("/imports", s.handleImports))
	s.mux.HandleFunc("GET /healthz", s.instrument("/healthz", s.handleHealthz))
	s.mux.Handle("GET /metrics", s.metricsHandler())
	return s
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type importRequest struct {
	URL   string `json:"url"`
	Token string `json:"token"`
	Code  string `json:"code"`
	Debug bool   `json:"debug"`
}

type importResponse struct {
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

// Messages shown to clients, by error kind.
var errorMessages = map[error]struct {
	status int
	msg    string
}{
	importer.ErrInvalidSource:    {http.StatusBadRequest, "Invalid argument sent"},
	importer.ErrDownloadFailed:   {http.StatusBadGateway, "Unable to download your website"},
	importer.ErrCollectionFailed: {http.StatusBadGateway, "Unable to read your website"},
	importer.ErrDeployFailed:     {http.StatusBadGateway, "Unable to deploy your website"},
	importer.ErrInternal:         {http.StatusInternalServerError, "Internal server error"},
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	run := uuid.NewString()

	var req importRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize)).Decode(&req); err != nil {
		s.fail(ctx, w, run, false, fmt.Errorf("%w: decoding request: %w", importer.ErrInvalidSource, err))
		return
	}
	source := importer.NormalizeSource(req.URL)
	if source == "" || (req.Token == "") == (req.Code == "") {
		s.fail(ctx, w, run, req.Debug, fmt.Errorf("%w: want url and exactly one of token or code", importer.ErrInvalidSource))
		return
	}

	logger.Info(ctx, "import started", slog.String("run", run), slog.String("url", source))

	token := req.Token
	if req.Code != "" {
		var err error
		token, err = s.exchange(ctx, req.Code)
		if err != nil {
			s.fail(ctx, w, run, req.Debug, fmt.Errorf("%w: exchanging code: %w", importer.ErrInternal, err))
			return
		}
	}

	root := filepath.Join(s.c.StagingRoot, run)
	if !s.c.KeepStaging {
		defer func() {
			if err := os.RemoveAll(root); err != nil {
				logger.Warn(ctx, "removing staging directory failed", slog.String("run", run), slog.Any("err", err))
			}
		}()
	}

	start := time.Now()
	url, err := importer.Import(ctx, &importer.Config{
		Source:      source,
		Token:       token,
		Client:      s.client(token),
		StagingRoot: root,
		Fetcher:     s.c.Fetcher,
		Target:      s.c.Target,
		Minify:      s.c.Minify,
	})
	s.metr.importDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.fail(ctx, w, run, req.Debug, err)
		return
	}

	s.metr.imports.WithLabelValues("ok").Inc()
	logger.Info(ctx, "import finished", slog.String("run", run), slog.String("published", url))
	writeJSON(w, http.StatusOK, importResponse{URL: url})
}

// fail reports err to the client with a message chosen by its kind.
func (s *Server) fail(ctx context.Context, w http.ResponseWriter, run string, debug bool, err error) {
	kind := importer.Kind(err)
	m := errorMessages[kind]
	s.metr.imports.WithLabelValues(outcome(kind)).Inc()

	if m.status >= http.StatusInternalServerError {
		logger.Error(ctx, "import failed", slog.String("run", run), slog.Any("err", err))
	} else {
		logger.Warn(ctx, "import failed", slog.String("run", run), slog.Any("err", err))
	}

	msg := m.msg
	if debug {
		msg += ": " + err.Error()
	}
	writeJSON(w, m.status, importResponse{Error: msg})
}

func outcome(kind error) string {
	return strings.ReplaceAll(kind.Error(), " ", "_")
}

type importsResponse struct {
	Imports []importedDeployment `json:"imports"`
}

type importedDeployment struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	URL     string    `json:"url"`
	Created time.Time `json:"created,omitzero"`
}

func (s *Server) handleImports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		writeJSON(w, http.StatusUnauthorized, importResponse{Error: "A token must be provided"})
		return
	}

	deps, err := s.client(strings.TrimSpace(token)).Imported(ctx)
	if err != nil {
		logger.Warn(ctx, "listing imports failed", slog.Any("err", err))
		writeJSON(w, http.StatusBadGateway, importResponse{Error: "Unable to list your imports"})
		return
	}

	resp := importsResponse{Imports: make([]importedDeployment, 0, len(deps))}
	for _, d := range deps {
		resp.Imports = append(resp.Imports, importedDeployment{
			ID:      d.ID,
			Name:    d.Name,
			URL:     d.URL,
			Created: d.Created,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) client(token string) *deployapi.Client {
	return deployapi.New(s.c.API, token,
		deployapi.WithHTTPClient(s.c.HTTPClient),
		deployapi.WithConcurrency(s.c.Concurrency),
	)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
