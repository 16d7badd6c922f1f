// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package importer publishes a static website through the deployment service.

An import goes through these states, in order:

	Idle
	NameDerived        project name derived from the source URL
	DirectoryPrepared  staging directory created
	Fetched            site downloaded (only with a Fetcher)
	FilesCollected     every file hashed
	FilesUploaded      every file accepted by the blob store
	DeploymentCreated  manifest submitted
	AliasResolved      alias found (optional)
	Done

The first failing step moves the import to Failed, and its error is returned
to the caller tagged with one of the error kinds of this package. The
importer never removes the staging directory; that is left to the caller
(see [Cleanup]).
*/
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.astrophena.name/siteimport/internal/deployapi"
	"go.astrophena.name/siteimport/internal/manifest"

	"go.astrophena.name/base/logger"
)

// State is a step of an import.
type State int

// Possible states.
const (
	Idle State = iota
	NameDerived
	DirectoryPrepared
	Fetched
	FilesCollected
	FilesUploaded
	DeploymentCreated
	AliasResolved
	Done
	Failed
)

var stateNames = [...]string{
	Idle:              "idle",
	NameDerived:       "name derived",
	DirectoryPrepared: "directory prepared",
	Fetched:           "fetched",
	FilesCollected:    "files collected",
	FilesUploaded:     "files uploaded",
	DeploymentCreated: "deployment created",
	AliasResolved:     "alias resolved",
	Done:              "done",
	Failed:            "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Fetcher downloads the site at source into dir.
type Fetcher interface {
	Fetch(ctx context.Context, source, dir string) error
}

// FetcherFunc is an adapter to allow the use of ordinary functions as
// [Fetcher].
type FetcherFunc func(ctx context.Context, source, dir string) error

// Fetch calls f(ctx, source, dir).
func (f FetcherFunc) Fetch(ctx context.Context, source, dir string) error {
	return f(ctx, source, dir)
}

// Config configures an import.
type Config struct {
	// Source is the URL of the site. The project name is derived from its
	// host.
	Source string
	// Token authenticates requests to the deployment service.
	Token string
	// API is the base URL of the deployment service. If empty,
	// deployapi.DefaultBase is used. Ignored when Client is set.
	API string
	// Client is the deployment service client. If nil, a client for API and
	// Token is created.
	Client *deployapi.Client
	// StagingRoot is the directory where the staging directory of the
	// project is created. If empty, the system temporary directory is used.
	StagingRoot string
	// Dir, if set, is deployed as is: no staging directory is prepared and
	// Fetcher is not called.
	Dir string
	// Fetcher downloads the site into the staging directory. If nil, the
	// staging directory is expected to be already populated.
	Fetcher Fetcher
	// Target is the deployment target. If empty, manifest.DefaultTarget is
	// used.
	Target string
	// Minify minifies web assets before they are hashed.
	Minify bool
	// Progress, if set, is called on every state transition.
	Progress func(State)
}

func (c *Config) client() *deployapi.Client {
	if c.Client != nil {
		return c.Client
	}
	return deployapi.New(c.API, c.Token)
}

// ImportWebsite publishes the contents of the staging directory of source
// under stagingRoot and returns the published URL.
func ImportWebsite(ctx context.Context, source, token, stagingRoot string) (string, error) {
	return Import(ctx, &Config{
		Source:      source,
		Token:       token,
		StagingRoot: stagingRoot,
	})
}

// Import runs an import and returns the published URL: the alias of the
// deployment if the service has finalized one, or its provisional URL.
func Import(ctx context.Context, c *Config) (url string, err error) {
	set := func(s State, attrs ...slog.Attr) {
		logger.Debug(ctx, "import: "+s.String(), slog.Attr{Key: "import", Value: slog.GroupValue(attrs...)})
		if c.Progress != nil {
			c.Progress(s)
		}
	}
	defer func() {
		if err != nil {
			set(Failed, slog.Any("err", err))
		}
	}()

	name, err := ProjectName(c.Source)
	if err != nil {
		return "", err
	}
	set(NameDerived, slog.String("name", name))

	dir := c.Dir
	if dir == "" {
		dir, err = prepare(c.StagingRoot, name)
		if err != nil {
			return "", tag(ErrInternal, err)
		}
	}
	set(DirectoryPrepared, slog.String("dir", dir))

	if c.Fetcher != nil && c.Dir == "" {
		if err := c.Fetcher.Fetch(ctx, c.Source, dir); err != nil {
			return "", tag(ErrDownloadFailed, err)
		}
		set(Fetched)
	}

	var opts []manifest.CollectOption
	if c.Minify {
		opts = append(opts, manifest.WithMinify())
	}
	files, err := manifest.Collect(ctx, dir, opts...)
	if err != nil {
		return "", tag(ErrCollectionFailed, err)
	}
	set(FilesCollected, slog.Int("files", len(files)))

	client := c.client()
	if err := client.Upload(ctx, files); err != nil {
		return "", tag(ErrDeployFailed, err)
	}
	set(FilesUploaded)

	title, err := manifest.Title(files)
	if err != nil {
		logger.Warn(ctx, "reading site title failed", slog.Any("err", err))
	}
	body, err := manifest.New(name, files,
		manifest.WithTarget(c.Target),
		manifest.WithMeta(map[string]string{"title": title}),
	).Encode()
	if err != nil {
		return "", tag(ErrInternal, err)
	}

	dep, err := client.CreateDeployment(ctx, body)
	if err != nil {
		return "", tag(ErrDeployFailed, err)
	}
	set(DeploymentCreated, slog.String("id", dep.ID), slog.String("url", dep.URL))

	if alias, ok := client.Alias(ctx, dep.ID); ok {
		dep.Alias = alias
		set(AliasResolved, slog.String("alias", alias))
	}

	url = dep.PublishedURL()
	set(Done, slog.String("url", url))
	return url, nil
}

func prepare(root, name string) (string, error) {
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Cleanup removes the staging directory of source under stagingRoot.
func Cleanup(ctx context.Context, stagingRoot, source string) error {
	if stagingRoot == "" {
		stagingRoot = os.TempDir()
	}
	dir, err := StagingDir(stagingRoot, source)
	if err != nil {
		return err
	}
	logger.Debug(ctx, "removing staging directory", slog.String("dir", dir))
	if err := os.RemoveAll(dir); err != nil {
		return tag(ErrInternal, err)
	}
	return nil
}
