// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.astrophena.name/siteimport/internal/fetch"
	"go.astrophena.name/siteimport/internal/server"

	"go.astrophena.name/base/cli"
	"go.astrophena.name/base/logger"
)

func main() { cli.Main(new(app)) }

type app struct {
	listen      string
	api         string
	staging     string
	target      string
	concurrency int
	minify      bool
	keep        bool
}

func (a *app) Flags(fs *flag.FlagSet) {
	fs.StringVar(&a.listen, "listen", "localhost:3000", "Listen on `host:port`.")
	fs.StringVar(&a.api, "api", "", "Deployment service API base `URL`.")
	fs.StringVar(&a.staging, "staging", "", "Download sites under `dir`. Defaults to the temporary directory.")
	fs.StringVar(&a.target, "target", "", "Deployment `target`.")
	fs.IntVar(&a.concurrency, "concurrency", 4, "Upload `n` files at once.")
	fs.BoolVar(&a.minify, "minify", false, "Minify HTML, CSS, JavaScript, JSON and SVG before deploying.")
	fs.BoolVar(&a.keep, "keep", false, "Keep staging directories after imports.")
}

func (a *app) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)

	srv := server.New(&server.Config{
		API:          a.api,
		StagingRoot:  a.staging,
		Fetcher:      &fetch.Wget{},
		Concurrency:  a.concurrency,
		Target:       a.target,
		Minify:       a.minify,
		KeepStaging:  a.keep,
		ClientID:     env.Getenv("CLIENT_ID"),
		ClientSecret: env.Getenv("CLIENT_SECRET"),
		RedirectURI:  env.Getenv("REDIRECT_URI"),
	})

	l, err := net.Listen("tcp", a.listen)
	if err != nil {
		return err
	}
	defer l.Close()
	logger.Info(ctx, "listening for HTTP requests", slog.String("addr", "http://"+l.Addr().String()))

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info(ctx, "gracefully shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return httpSrv.Shutdown(shutdownCtx)
}
