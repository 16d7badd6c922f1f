// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package manifest

import (
	"bytes"
	"testing"

	"go.astrophena.name/base/testutil"
)

const (
	indexHTML = "<h1>Hi</h1>\n"
	indexSHA  = "2ff3d1aa10e7d7e738a2b7baa456247dfb60bac2"
	logoSHA   = "e6af915acf92d776596daa9deb899e4b6683104c"
	logoB64   = "iVBORw0KGgoAAQIDBAUGBwgJCgsMDQ4PEBESExQVFhcYGRobHB0eHw=="
)

// logoPNG is a PNG signature followed by 32 bytes, 40 bytes total. The
// signature is not valid UTF-8.
func logoPNG() []byte {
	b := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	for i := range 32 {
		b = append(b, byte(i))
	}
	return b
}

func TestDescribe(t *testing.T) {
	cases := map[string]struct {
		path        string
		raw         []byte
		wantSHA     string
		wantSize    int64
		wantPayload string
		wantBinary  bool
	}{
		"text": {
			path:        "index.html",
			raw:         []byte(indexHTML),
			wantSHA:     indexSHA,
			wantSize:    12,
			wantPayload: indexHTML,
		},
		"binary": {
			path:        "logo.png",
			raw:         logoPNG(),
			wantSHA:     logoSHA,
			wantSize:    40,
			wantPayload: logoB64,
			wantBinary:  true,
		},
		"empty": {
			path:    "empty.txt",
			raw:     []byte{},
			wantSHA: "da39a3ee5e6b4b0d3255bfef95601890afd80709",
		},
		"multibyte text": {
			path:        "hello.txt",
			raw:         []byte("привет"),
			wantSHA:     "e24505f94db2b5df4c7c2596b0788e720e073021",
			wantSize:    12,
			wantPayload: "привет",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := Describe(tc.path, tc.raw)
			testutil.AssertEqual(t, f.Path, tc.path)
			testutil.AssertEqual(t, f.SHA, tc.wantSHA)
			testutil.AssertEqual(t, f.Size, tc.wantSize)
			testutil.AssertEqual(t, f.Payload, tc.wantPayload)
			testutil.AssertEqual(t, f.Binary, tc.wantBinary)

			raw, err := f.Decode()
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(raw, tc.raw) {
				t.Fatalf("Decode: want %q, got %q", tc.raw, raw)
			}
		})
	}
}

func TestDescribeDeterministic(t *testing.T) {
	raw := logoPNG()
	a, b := Describe("a.png", raw), Describe("b/c.png", raw)
	testutil.AssertEqual(t, a.SHA, b.SHA)
	testutil.AssertEqual(t, a.Payload, b.Payload)
}

func TestEncode(t *testing.T) {
	files := []File{
		Describe("index.html", []byte(indexHTML)),
		Describe("logo.png", logoPNG()),
	}
	m := New("example-com", files)

	got, err := m.Encode()
	if err != nil {
		t.Fatal(err)
	}
	const want = `{"version":2,"name":"example-com",` +
		`"builds":[{"src":"**/*","use":"@now/static"}],` +
		`"files":[` +
		`{"file":"index.html","sha":"` + indexSHA + `","size":12,"content":"<h1>Hi</h1>\n"},` +
		`{"file":"logo.png","sha":"` + logoSHA + `","size":40,"content":"` + logoB64 + `","encoding":"base64"}` +
		`],"target":"staging","meta":{"imported":"true"}}`
	testutil.AssertEqual(t, string(got), want)

	again, err := m.Encode()
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(again), string(got))
}

func TestNewOptions(t *testing.T) {
	files := []File{Describe("index.html", []byte(indexHTML))}
	m := New("example-com", files,
		WithTarget("production"),
		WithBuilder("@now/static-build"),
		WithMeta(map[string]string{"source": "https://example.com", "title": ""}),
	)

	testutil.AssertEqual(t, m.Target, "production")
	testutil.AssertEqual(t, m.Builder, "@now/static-build")
	testutil.AssertEqual(t, m.Meta, map[string]string{
		"imported": "true",
		"source":   "https://example.com",
	})

	// The manifest owns its copy of the files.
	files[0].Path = "changed.html"
	testutil.AssertEqual(t, m.Files[0].Path, "index.html")
}

func TestNewEmptyOptionsKeepDefaults(t *testing.T) {
	m := New("example-com", nil, WithTarget(""), WithBuilder(""))
	testutil.AssertEqual(t, m.Target, DefaultTarget)
	testutil.AssertEqual(t, m.Builder, DefaultBuilder)

	got, err := m.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(got, []byte(`"files":[]`)) {
		t.Fatalf("empty manifest should have an empty files list, got %s", got)
	}
}

func TestTitle(t *testing.T) {
	cases := map[string]struct {
		files []File
		want  string
	}{
		"no index": {
			files: []File{Describe("about.html", []byte("<title>About</title>"))},
			want:  "",
		},
		"with title": {
			files: []File{Describe("index.html", []byte("<html><head><title>\n  Example   Domain\n</title></head><body></body></html>"))},
			want:  "Example Domain",
		},
		"without title": {
			files: []File{Describe("index.html", []byte(indexHTML))},
			want:  "",
		},
		"nested index is ignored": {
			files: []File{Describe("blog/index.html", []byte("<title>Blog</title>"))},
			want:  "",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := Title(tc.files)
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, got, tc.want)
		})
	}
}
