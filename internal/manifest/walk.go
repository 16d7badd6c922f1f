// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package manifest

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"go.astrophena.name/base/logger"
)

// Walk returns the absolute paths of all regular files below root. The root
// itself is never yielded. Directories are read with [os.ReadDir], so entries
// come in lexical order.
//
// Entries that are not regular files or directories (symlinks, sockets,
// devices) are skipped. If any directory can't be read, Walk yields the error
// once and stops: a partial listing would silently drop files from the
// deployment.
func Walk(ctx context.Context, root string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		abs, err := filepath.Abs(root)
		if err != nil {
			yield("", err)
			return
		}

		stack := []string{abs}
		for len(stack) > 0 {
			dir := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			entries, err := os.ReadDir(dir)
			if err != nil {
				yield("", fmt.Errorf("reading directory %s: %w", dir, err))
				return
			}

			var subdirs []string
			for _, e := range entries {
				path := filepath.Join(dir, e.Name())
				switch typ := e.Type(); {
				case typ.IsDir():
					subdirs = append(subdirs, path)
				case typ.IsRegular():
					if !yield(path, nil) {
						return
					}
				default:
					logger.Debug(ctx, "skipping non-regular file",
						slog.String("path", path),
						slog.String("mode", typ.String()),
					)
				}
			}
			// Reversed, so that the first subdirectory is popped first.
			slices.Reverse(subdirs)
			stack = append(stack, subdirs...)
		}
	}
}

// CollectOption configures [Collect].
type CollectOption func(*collector)

type collector struct {
	min *min
}

// WithMinify minifies HTML, CSS, JavaScript, JSON and SVG files before they
// are hashed, so the deployment contains the minified bytes.
func WithMinify() CollectOption {
	return func(c *collector) {
		c.min = newMin()
	}
}

// Collect walks root and describes every file in it. Paths in the result are
// relative to root.
//
// Files that can't be opened are logged and left out. A failure to read a
// file that was opened, or to read a directory, aborts the collection.
func Collect(ctx context.Context, root string, opts ...CollectOption) ([]File, error) {
	c := &collector{}
	for _, opt := range opts {
		opt(c)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var files []File
	for path, err := range Walk(ctx, abs) {
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(rel)

		f, err := os.Open(path)
		if err != nil {
			logger.Warn(ctx, "skipping unreadable file",
				slog.String("path", rel),
				slog.Any("err", err),
			)
			continue
		}
		raw, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", rel, err)
		}

		if c.min != nil {
			raw, err = c.min.file(rel, raw)
			if err != nil {
				return nil, fmt.Errorf("minifying %s: %w", rel, err)
			}
		}

		files = append(files, Describe(rel, raw))
	}

	logger.Debug(ctx, "collected files", slog.Int("count", len(files)))
	return files, nil
}
