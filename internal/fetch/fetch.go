// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package fetch downloads websites for import.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"go.astrophena.name/base/logger"
)

// Wget mirrors a site with GNU Wget: the page, every page it links to on the
// same host and everything needed to display them.
type Wget struct {
	// Path is the wget binary. If empty, "wget" is looked up in PATH.
	Path string
	// Args are extra arguments, passed before the URL.
	Args []string
}

// DefaultArgs are the arguments Wget always passes.
var DefaultArgs = []string{
	"--recursive",
	"--no-clobber",
	"--page-requisites",
	"--tries=3",
	"--no-host-directories",
	"--quiet",
}

// Fetch downloads source into dir.
func (w *Wget) Fetch(ctx context.Context, source, dir string) error {
	bin := w.Path
	if bin == "" {
		bin = "wget"
	}
	args := append(append(append([]string(nil), DefaultArgs...), w.Args...), source)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.Stderr = &stderr

	logger.Debug(ctx, "starting download",
		slog.String("url", source),
		slog.String("dir", dir),
	)
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", bin, err, msg)
		}
		return fmt.Errorf("%s: %w", bin, err)
	}
	logger.Debug(ctx, "download finished", slog.String("url", source))
	return nil
}
