// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Siteimport publishes an existing website through the deployment service.

# Usage

	$ siteimport [flags] <url>
	$ siteimport -list

Downloads the website at url with wget, deploys every downloaded file and
prints the published URL. The project is named after the host of url, so
https://example.com becomes example-com. A url without a scheme, like
example.com, is fetched over http.

With -list, prints the deployments made by earlier imports instead, newest
first.

With -dir, the files in that directory are deployed instead and nothing is
downloaded. With -dir and -watch, the directory is deployed again every time
something in it changes.

# Authentication

The token for the deployment service is taken from the first of:

  - the -token flag;
  - the SITEIMPORT_TOKEN environment variable;
  - the token key of the configuration file;
  - ~/.now/auth.json, written by the now command-line client.

# Configuration

The configuration file is a YAML document read from
$XDG_CONFIG_HOME/siteimport/config.yaml, or from the path given with
-config:

	token: "…"
	api: https://api.zeit.co
	target: staging
	staging: /var/tmp/siteimport
	concurrency: 4
	minify: true

Flags take precedence over the environment, which takes precedence over the
file. SITEIMPORT_API overrides the API base URL.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/base/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
