// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package importer

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"
)

// ProjectName derives the project name from the host of source, replacing
// every dot with a dash:
//
//	https://www.Example.com/blog → www-example-com
//
// The name is used both for the staging directory and for the remote
// project.
func ProjectName(source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", tag(ErrInvalidSource, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", tag(ErrInvalidSource, errors.New("URL has no host"))
	}
	return strings.ReplaceAll(host, ".", "-"), nil
}

// StagingDir returns the directory under root where [Import] downloads
// source to.
func StagingDir(root, source string) (string, error) {
	name, err := ProjectName(source)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, name), nil
}

// NormalizeSource turns what a user typed into a URL [Import] accepts. A
// bare host or a scheme-relative URL gets the http scheme:
//
//	example.com/blog   → http://example.com/blog
//	//example.com      → http://example.com
//	https://example.com  unchanged
//
// Surrounding whitespace is removed. Anything else is left for
// [ProjectName] to accept or reject.
func NormalizeSource(source string) string {
	source = strings.TrimSpace(source)
	switch {
	case source == "":
		return ""
	case strings.HasPrefix(source, "//"):
		return "http:" + source
	case !strings.Contains(source, "://"):
		return "http://" + source
	}
	return source
}
