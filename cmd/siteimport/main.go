// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"go.astrophena.name/siteimport/internal/deployapi"
	"go.astrophena.name/siteimport/internal/fetch"
	"go.astrophena.name/siteimport/internal/importer"

	"go.astrophena.name/base/cli"
	"go.astrophena.name/base/logger"
)

func main() { cli.Main(new(app)) }

type app struct {
	token       string
	api         string
	config      string
	dir         string
	staging     string
	target      string
	concurrency int
	keep        bool
	watch       bool
	minify      bool
	list        bool

	httpc *http.Client // nil means request.DefaultClient
}

func (a *app) Flags(fs *flag.FlagSet) {
	fs.StringVar(&a.token, "token", "", "Deployment service `token`.")
	fs.StringVar(&a.api, "api", "", "Deployment service API base `URL`.")
	fs.StringVar(&a.config, "config", "", "Read configuration from `file`.")
	fs.StringVar(&a.dir, "dir", "", "Deploy files from `dir` instead of downloading the site.")
	fs.StringVar(&a.staging, "staging", "", "Download sites under `dir`. Defaults to the temporary directory.")
	fs.StringVar(&a.target, "target", "", "Deployment `target`.")
	fs.IntVar(&a.concurrency, "concurrency", 0, "Upload `n` files at once.")
	fs.BoolVar(&a.keep, "keep", false, "Keep downloaded files after deploying.")
	fs.BoolVar(&a.watch, "watch", false, "Deploy -dir again when it changes.")
	fs.BoolVar(&a.minify, "minify", false, "Minify HTML, CSS, JavaScript, JSON and SVG before deploying.")
	fs.BoolVar(&a.list, "list", false, "List earlier imports and exit.")
}

// Messages shown to the user, by error kind.
var messages = map[error]string{
	importer.ErrInvalidSource:    "invalid URL",
	importer.ErrDownloadFailed:   "download failed, try again",
	importer.ErrCollectionFailed: "reading the downloaded files failed",
	importer.ErrDeployFailed:     "deploying failed, try again",
	importer.ErrInternal:         "something went wrong",
}

func (a *app) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)
	if a.list {
		if len(env.Args) != 0 {
			return fmt.Errorf("%w: -list takes no arguments", cli.ErrInvalidArgs)
		}
	} else if len(env.Args) != 1 {
		return fmt.Errorf("%w: want exactly one URL", cli.ErrInvalidArgs)
	}
	if a.watch && a.dir == "" {
		return fmt.Errorf("%w: -watch needs -dir", cli.ErrInvalidArgs)
	}

	home, _ := os.UserHomeDir()
	s, err := a.resolve(env.Getenv, home)
	if err != nil {
		return err
	}
	client := deployapi.New(s.api, s.token,
		deployapi.WithHTTPClient(a.httpc),
		deployapi.WithConcurrency(s.concurrency),
	)

	if a.list {
		return listImports(ctx, env.Stdout, client)
	}

	source := importer.NormalizeSource(env.Args[0])
	c := &importer.Config{
		Source:      source,
		Token:       s.token,
		Client:      client,
		StagingRoot: s.staging,
		Dir:         a.dir,
		Target:      s.target,
		Minify:      s.minify,
		Progress: func(st importer.State) {
			logger.Info(ctx, st.String())
		},
	}
	if a.dir == "" {
		c.Fetcher = &fetch.Wget{}
	}

	if a.watch {
		c.Progress = nil
		return importer.Watch(ctx, c, func(url string, err error) {
			if err == nil {
				fmt.Fprintln(env.Stdout, url)
			}
		})
	}

	url, err := importer.Import(ctx, c)
	if a.dir == "" && !a.keep && !errors.Is(err, importer.ErrInvalidSource) {
		if cerr := importer.Cleanup(ctx, s.staging, source); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", messages[importer.Kind(err)], err)
	}

	logger.Info(ctx, "project deployed", slog.String("url", url))
	fmt.Fprintln(env.Stdout, url)
	return nil
}

// listImports prints the deployments created by earlier imports, newest
// first.
func listImports(ctx context.Context, w io.Writer, client *deployapi.Client) error {
	deps, err := client.Imported(ctx)
	if err != nil {
		return err
	}
	if len(deps) == 0 {
		logger.Info(ctx, "no imports yet")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for _, d := range deps {
		created := "-"
		if !d.Created.IsZero() {
			created = d.Created.Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, d.URL, created)
	}
	return tw.Flush()
}
