// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package manifest turns a directory of static files into a deployment
// manifest.
//
// # Files
//
// Every regular file under the deployment root becomes a [File]. Its digest is
// the SHA-1 of the raw bytes. Bytes that are valid UTF-8 are carried as text,
// everything else is carried base64-encoded:
//
//	index.html  text    payload is the file itself
//	logo.png    binary  payload is base64(raw)
//
// The digest never depends on the chosen encoding, so the remote store can
// verify an upload no matter how it was transported.
//
// # Manifest Layout
//
// [Manifest.Encode] produces the document the deployment service expects:
//
//	{
//	  "version": 2,
//	  "name": "example-com",
//	  "builds": [{"src": "**/*", "use": "@now/static"}],
//	  "files": [{"file": "index.html", "sha": "…", "size": 12, "content": "…"}],
//	  "target": "staging",
//	  "meta": {"imported": "true"}
//	}
package manifest

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"maps"
	"unicode/utf8"
)

// Defaults used by [New].
const (
	DefaultTarget  = "staging"
	DefaultBuilder = "@now/static"

	version = 2
)

// File describes a single file of a deployment.
type File struct {
	Path    string // slash-separated, relative to the deployment root
	SHA     string // hex SHA-1 of the raw bytes
	Size    int64  // length of the raw bytes
	Payload string // raw text, or base64 of the raw bytes if Binary
	Binary  bool
}

// Describe computes the descriptor of raw file contents found at rel.
func Describe(rel string, raw []byte) File {
	sum := sha1.Sum(raw)
	f := File{
		Path: rel,
		SHA:  hex.EncodeToString(sum[:]),
		Size: int64(len(raw)),
	}
	if utf8.Valid(raw) {
		f.Payload = string(raw)
	} else {
		f.Binary = true
		f.Payload = base64.StdEncoding.EncodeToString(raw)
	}
	return f
}

// Decode returns the raw bytes carried by the payload.
func (f File) Decode() ([]byte, error) {
	if f.Binary {
		return base64.StdEncoding.DecodeString(f.Payload)
	}
	return []byte(f.Payload), nil
}

// Manifest is a complete description of a deployment. It is not modified
// after [New] returns.
type Manifest struct {
	Name    string
	Files   []File
	Target  string
	Builder string
	Meta    map[string]string
}

// Option configures a [Manifest].
type Option func(*Manifest)

// WithTarget sets the deployment target. Empty keeps [DefaultTarget].
func WithTarget(target string) Option {
	return func(m *Manifest) {
		if target != "" {
			m.Target = target
		}
	}
}

// WithBuilder sets the builder that serves the files. Empty keeps
// [DefaultBuilder].
func WithBuilder(builder string) Option {
	return func(m *Manifest) {
		if builder != "" {
			m.Builder = builder
		}
	}
}

// WithMeta adds descriptive metadata. Empty values are dropped.
func WithMeta(meta map[string]string) Option {
	return func(m *Manifest) {
		for k, v := range meta {
			if v == "" {
				continue
			}
			m.Meta[k] = v
		}
	}
}

// New builds a manifest for the named project. The files slice is copied.
func New(name string, files []File, opts ...Option) *Manifest {
	m := &Manifest{
		Name:    name,
		Files:   append([]File(nil), files...),
		Target:  DefaultTarget,
		Builder: DefaultBuilder,
		Meta:    map[string]string{"imported": "true"},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type document struct {
	Version int               `json:"version"`
	Name    string            `json:"name"`
	Builds  []build           `json:"builds"`
	Files   []fileEntry       `json:"files"`
	Target  string            `json:"target"`
	Meta    map[string]string `json:"meta"`
}

type build struct {
	Src string `json:"src"`
	Use string `json:"use"`
}

type fileEntry struct {
	File     string `json:"file"`
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Content  string `json:"content"`
	Encoding string `json:"encoding,omitempty"`
}

// Encode serializes the manifest. Equal manifests encode to equal bytes.
func (m *Manifest) Encode() ([]byte, error) {
	doc := document{
		Version: version,
		Name:    m.Name,
		Builds:  []build{{Src: "**/*", Use: m.Builder}},
		Files:   make([]fileEntry, 0, len(m.Files)),
		Target:  m.Target,
		Meta:    maps.Clone(m.Meta),
	}
	for _, f := range m.Files {
		e := fileEntry{
			File:    f.Path,
			SHA:     f.SHA,
			Size:    f.Size,
			Content: f.Payload,
		}
		if f.Binary {
			e.Encoding = "base64"
		}
		doc.Files = append(doc.Files, e)
	}
	// Keep markup in payloads unescaped.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
