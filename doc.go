// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package siteimport turns a folder of static files into a published URL.

A local directory, usually a website mirrored with wget, is packaged into a
content-addressed manifest. Every file is uploaded to the blob store of the
deployment service, the manifest is submitted, and the deployment is
resolved to its alias.

The work is split between these packages:

	internal/manifest   walking, hashing and the manifest document
	internal/deployapi  client for the deployment service
	internal/importer   the import pipeline and watch mode
	internal/fetch      downloading sites with wget
	internal/server     HTTP front end

Commands:

	cmd/siteimport   import a site or deploy a directory from the command line
	cmd/siteimportd  serve imports over HTTP
*/
package siteimport

//go:generate go tool addcopyright
