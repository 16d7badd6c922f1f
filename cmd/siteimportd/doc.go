// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Siteimportd serves website imports over HTTP.

# Usage

	$ siteimportd [flags]

Every request to POST /import downloads a website with wget into its own
staging directory, deploys it and answers with the published URL. See
package go.astrophena.name/siteimport/internal/server for the request
format.

To accept OAuth authorization codes instead of tokens, set CLIENT_ID,
CLIENT_SECRET and REDIRECT_URI.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/base/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
