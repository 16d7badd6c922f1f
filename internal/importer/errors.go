// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package importer

import (
	"errors"
	"fmt"
)

// Kinds of errors returned by [Import]. Every error it returns matches
// exactly one of them with [errors.Is].
var (
	// ErrInvalidSource means the source can't be parsed as a URL or has no host.
	ErrInvalidSource = errors.New("invalid source")
	// ErrDownloadFailed means the fetcher couldn't download the site.
	ErrDownloadFailed = errors.New("download failed")
	// ErrCollectionFailed means the staging directory couldn't be read.
	ErrCollectionFailed = errors.New("collecting files failed")
	// ErrDeployFailed means the deployment service rejected an upload or the
	// deployment.
	ErrDeployFailed = errors.New("deploy failed")
	// ErrInternal means local preparation or cleanup failed.
	ErrInternal = errors.New("internal error")
)

var kinds = []error{
	ErrInvalidSource,
	ErrDownloadFailed,
	ErrCollectionFailed,
	ErrDeployFailed,
	ErrInternal,
}

// Kind returns the kind of err. It returns nil for a nil error and
// [ErrInternal] for errors that weren't produced by this package.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}

// tag marks err with kind. The underlying error stays available to
// [errors.Is] and [errors.As].
func tag(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}
