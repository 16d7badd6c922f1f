// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.astrophena.name/siteimport/internal/deployapi"

	"go.astrophena.name/base/testutil"
	"go.astrophena.name/base/txtar"
)

const (
	testAPI   = "https://api.example.com"
	testToken = "secret"
)

// logoPNG is a PNG signature followed by 32 bytes, 40 bytes total.
func logoPNG() []byte {
	b := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	for i := range 32 {
		b = append(b, byte(i))
	}
	return b
}

// fakeService imitates the deployment service.
type fakeService struct {
	t *testing.T

	uploadStatus int      // status of POST /files, 200 if zero
	failUpload   int      // if set, only this upload (1-based) gets uploadStatus
	aliases      []string // aliasFinal of GET /deployments/{id}, omitted if nil

	mu          sync.Mutex
	uploads     map[string]string // digest → payload
	uploadCalls int
	deployments []deploymentBody
	lookups     int
}

type deploymentBody struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	Builds  []struct {
		Src string `json:"src"`
		Use string `json:"use"`
	} `json:"builds"`
	Files []struct {
		File     string `json:"file"`
		SHA      string `json:"sha"`
		Size     int64  `json:"size"`
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	} `json:"files"`
	Target string            `json:"target"`
	Meta   map[string]string `json:"meta"`
}

func (s *fakeService) client() *deployapi.Client {
	return deployapi.New(testAPI, testToken, deployapi.WithHTTPClient(testutil.MockHTTPClient(s.handler())))
}

func (s *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST api.example.com/v2/now/files", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			s.t.Errorf("upload: unexpected Authorization header %q", r.Header.Get("Authorization"))
		}
		b, err := io.ReadAll(r.Body)
		if err != nil {
			s.t.Error(err)
		}
		s.mu.Lock()
		if s.uploads == nil {
			s.uploads = make(map[string]string)
		}
		s.uploads[r.Header.Get("x-content-digest")] = string(b)
		s.uploadCalls++
		n := s.uploadCalls
		s.mu.Unlock()
		if s.uploadStatus != 0 && (s.failUpload == 0 || s.failUpload == n) {
			w.WriteHeader(s.uploadStatus)
		}
	})
	mux.HandleFunc("POST api.example.com/v9/now/deployments", func(w http.ResponseWriter, r *http.Request) {
		var body deploymentBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.t.Errorf("decoding deployment: %v", err)
		}
		s.mu.Lock()
		s.deployments = append(s.deployments, body)
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"dep_1","url":"https://dep1.host"}`)
	})
	mux.HandleFunc("GET api.example.com/v9/now/deployments/{id}", func(w http.ResponseWriter, r *http.Request) {
		if id := r.PathValue("id"); id != "dep_1" {
			s.t.Errorf("alias lookup: unexpected id %q", id)
		}
		s.mu.Lock()
		s.lookups++
		s.mu.Unlock()
		resp := map[string]any{"id": "dep_1"}
		if s.aliases != nil {
			resp["aliasFinal"] = s.aliases
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	return mux
}

// stage creates the staging directory of example.com under a new staging
// root and fills it with index.html and logo.png.
func stage(t *testing.T) (root string) {
	t.Helper()
	root = t.TempDir()
	dir := filepath.Join(root, "example-com")
	testutil.ExtractTxtar(t, txtar.Parse([]byte("-- index.html --\n<h1>Hi</h1>\n")), dir)
	if err := os.WriteFile(filepath.Join(dir, "logo.png"), logoPNG(), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestImport(t *testing.T) {
	cases := map[string]struct {
		aliases []string
		want    string
	}{
		"alias resolved": {
			aliases: []string{"example-com.host"},
			want:    "example-com.host",
		},
		"no alias yet": {
			aliases: []string{},
			want:    "https://dep1.host",
		},
		"alias field missing": {
			want: "https://dep1.host",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &fakeService{t: t, aliases: tc.aliases}
			var states []State
			got, err := Import(t.Context(), &Config{
				Source:      "https://example.com",
				Token:       testToken,
				Client:      svc.client(),
				StagingRoot: stage(t),
				Progress:    func(s State) { states = append(states, s) },
			})
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, got, tc.want)

			testutil.AssertEqual(t, len(svc.uploads), 2)
			testutil.AssertEqual(t, svc.uploads["2ff3d1aa10e7d7e738a2b7baa456247dfb60bac2"], "<h1>Hi</h1>\n")
			testutil.AssertEqual(t, svc.uploads["e6af915acf92d776596daa9deb899e4b6683104c"], "iVBORw0KGgoAAQIDBAUGBwgJCgsMDQ4PEBESExQVFhcYGRobHB0eHw==")

			testutil.AssertEqual(t, len(svc.deployments), 1)
			dep := svc.deployments[0]
			testutil.AssertEqual(t, dep.Version, 2)
			testutil.AssertEqual(t, dep.Name, "example-com")
			testutil.AssertEqual(t, dep.Target, "staging")
			testutil.AssertEqual(t, dep.Meta, map[string]string{"imported": "true"})
			testutil.AssertEqual(t, len(dep.Builds), 1)
			testutil.AssertEqual(t, dep.Builds[0].Src, "**/*")
			testutil.AssertEqual(t, dep.Builds[0].Use, "@now/static")
			testutil.AssertEqual(t, len(dep.Files), 2)
			testutil.AssertEqual(t, dep.Files[0].File, "index.html")
			testutil.AssertEqual(t, dep.Files[0].Size, int64(12))
			testutil.AssertEqual(t, dep.Files[0].Content, "<h1>Hi</h1>\n")
			testutil.AssertEqual(t, dep.Files[0].Encoding, "")
			testutil.AssertEqual(t, dep.Files[1].File, "logo.png")
			testutil.AssertEqual(t, dep.Files[1].Size, int64(40))
			testutil.AssertEqual(t, dep.Files[1].Encoding, "base64")

			wantStates := []State{NameDerived, DirectoryPrepared, FilesCollected, FilesUploaded, DeploymentCreated}
			if len(tc.aliases) > 0 {
				wantStates = append(wantStates, AliasResolved)
			}
			wantStates = append(wantStates, Done)
			testutil.AssertEqual(t, states, wantStates)
		})
	}
}

func TestImportWebsite(t *testing.T) {
	// ImportWebsite talks to the real service, so only check that a bad
	// source fails before any request is made.
	root := stage(t)
	_, err := ImportWebsite(context.Background(), "not a url", testToken, root)
	if !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("want ErrInvalidSource, got %v", err)
	}
}

func TestImportInvalidSource(t *testing.T) {
	for _, source := range []string{"not a url", "", "/just/a/path", "http://[::1"} {
		t.Run(source, func(t *testing.T) {
			root := t.TempDir()
			mux := http.NewServeMux()
			mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL)
			})
			var states []State
			_, err := Import(t.Context(), &Config{
				Source:      source,
				StagingRoot: root,
				Client:      deployapi.New(testAPI, testToken, deployapi.WithHTTPClient(testutil.MockHTTPClient(mux))),
				Progress:    func(s State) { states = append(states, s) },
			})
			if !errors.Is(err, ErrInvalidSource) {
				t.Fatalf("want ErrInvalidSource, got %v", err)
			}
			testutil.AssertEqual(t, Kind(err), ErrInvalidSource)
			testutil.AssertEqual(t, states, []State{Failed})

			entries, err := os.ReadDir(root)
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, len(entries), 0)
		})
	}
}

func TestImportUploadFailure(t *testing.T) {
	svc := &fakeService{t: t, uploadStatus: http.StatusInternalServerError}
	_, err := Import(t.Context(), &Config{
		Source:      "https://example.com",
		Client:      svc.client(),
		StagingRoot: stage(t),
	})
	if !errors.Is(err, ErrDeployFailed) {
		t.Fatalf("want ErrDeployFailed, got %v", err)
	}
	var serr *deployapi.StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("want *deployapi.StatusError in chain, got %v", err)
	}
	testutil.AssertEqual(t, len(svc.uploads), 1)
	testutil.AssertEqual(t, len(svc.deployments), 0)
	testutil.AssertEqual(t, svc.lookups, 0)
}

func TestImportUploadFailureMidway(t *testing.T) {
	const n = 5
	for k := 1; k <= n; k++ {
		t.Run(fmt.Sprintf("%d of %d", k, n), func(t *testing.T) {
			dir := t.TempDir()
			for i := 1; i <= n; i++ {
				name := fmt.Sprintf("page%02d.html", i)
				if err := os.WriteFile(filepath.Join(dir, name), []byte(fmt.Sprintf("<p>%d</p>", i)), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			svc := &fakeService{t: t, uploadStatus: http.StatusBadGateway, failUpload: k}
			_, err := Import(t.Context(), &Config{
				Source: "https://example.com",
				Client: svc.client(),
				Dir:    dir,
			})
			if !errors.Is(err, ErrDeployFailed) {
				t.Fatalf("want ErrDeployFailed, got %v", err)
			}
			var serr *deployapi.StatusError
			if !errors.As(err, &serr) {
				t.Fatalf("want *deployapi.StatusError in chain, got %v", err)
			}
			testutil.AssertEqual(t, serr.Op, fmt.Sprintf("uploading page%02d.html", k))
			testutil.AssertEqual(t, svc.uploadCalls, k)
			testutil.AssertEqual(t, len(svc.deployments), 0)
			testutil.AssertEqual(t, svc.lookups, 0)
		})
	}
}

func TestImportCollectionFailure(t *testing.T) {
	svc := &fakeService{t: t}
	_, err := Import(t.Context(), &Config{
		Source: "https://example.com",
		Client: svc.client(),
		Dir:    filepath.Join(t.TempDir(), "missing"),
	})
	if !errors.Is(err, ErrCollectionFailed) {
		t.Fatalf("want ErrCollectionFailed, got %v", err)
	}
	testutil.AssertEqual(t, len(svc.uploads), 0)
}

func TestImportPrepareFailure(t *testing.T) {
	// A staging root that is a file can't hold the staging directory.
	root := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(root, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Import(t.Context(), &Config{
		Source:      "https://example.com",
		Client:      (&fakeService{t: t}).client(),
		StagingRoot: root,
	})
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("want ErrInternal, got %v", err)
	}
}

func TestImportFetcher(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		svc := &fakeService{t: t, aliases: []string{"example-com.host"}}
		root := t.TempDir()
		var states []State
		got, err := Import(t.Context(), &Config{
			Source:      "https://Example.com/",
			Client:      svc.client(),
			StagingRoot: root,
			Fetcher: FetcherFunc(func(ctx context.Context, source, dir string) error {
				testutil.AssertEqual(t, source, "https://Example.com/")
				testutil.AssertEqual(t, dir, filepath.Join(root, "example-com"))
				return os.WriteFile(filepath.Join(dir, "index.html"), []byte("<title>Example</title>"), 0o644)
			}),
			Progress: func(s State) { states = append(states, s) },
		})
		if err != nil {
			t.Fatal(err)
		}
		testutil.AssertEqual(t, got, "example-com.host")
		testutil.AssertEqual(t, states[:4], []State{NameDerived, DirectoryPrepared, Fetched, FilesCollected})
		testutil.AssertEqual(t, svc.deployments[0].Meta, map[string]string{"imported": "true", "title": "Example"})
	})

	t.Run("failure", func(t *testing.T) {
		svc := &fakeService{t: t}
		_, err := Import(t.Context(), &Config{
			Source:      "https://example.com",
			Client:      svc.client(),
			StagingRoot: t.TempDir(),
			Fetcher: FetcherFunc(func(ctx context.Context, source, dir string) error {
				return errors.New("wget exited with status 8")
			}),
		})
		if !errors.Is(err, ErrDownloadFailed) {
			t.Fatalf("want ErrDownloadFailed, got %v", err)
		}
		testutil.AssertEqual(t, len(svc.uploads), 0)
	})

	t.Run("not called with Dir", func(t *testing.T) {
		svc := &fakeService{t: t}
		root := stage(t)
		_, err := Import(t.Context(), &Config{
			Source: "https://example.com",
			Client: svc.client(),
			Dir:    filepath.Join(root, "example-com"),
			Fetcher: FetcherFunc(func(ctx context.Context, source, dir string) error {
				t.Error("fetcher should not be called")
				return nil
			}),
		})
		if err != nil {
			t.Fatal(err)
		}
		testutil.AssertEqual(t, len(svc.uploads), 2)
	})
}

func TestImportDoesNotCleanUp(t *testing.T) {
	root := stage(t)
	if _, err := Import(t.Context(), &Config{
		Source:      "https://example.com",
		Client:      (&fakeService{t: t}).client(),
		StagingRoot: root,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "example-com", "index.html")); err != nil {
		t.Fatalf("staging directory should be left in place: %v", err)
	}

	if err := Cleanup(t.Context(), root, "https://example.com"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "example-com")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("staging directory should be removed, got %v", err)
	}
	// Removing it again is not an error.
	if err := Cleanup(t.Context(), root, "https://example.com"); err != nil {
		t.Fatal(err)
	}
}

func TestProjectName(t *testing.T) {
	cases := map[string]struct {
		source  string
		want    string
		wantErr error
	}{
		"simple":     {source: "https://example.com", want: "example-com"},
		"subdomain":  {source: "https://www.blog.example.com/posts/1?x=y", want: "www-blog-example-com"},
		"port":       {source: "http://localhost:8080/", want: "localhost"},
		"uppercase":  {source: "https://EXAMPLE.org", want: "example-org"},
		"no scheme":  {source: "example.com", wantErr: ErrInvalidSource},
		"not a url":  {source: "not a url", wantErr: ErrInvalidSource},
		"bad escape": {source: "https://example.com/%zz", wantErr: ErrInvalidSource},
		"empty":      {source: "", wantErr: ErrInvalidSource},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ProjectName(tc.source)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, got, tc.want)
		})
	}
}

func TestNormalizeSource(t *testing.T) {
	cases := map[string]struct {
		source  string
		want    string
		project string
	}{
		"bare host":       {source: "example.com", want: "http://example.com", project: "example-com"},
		"bare with path":  {source: "Example.com/blog?p=1", want: "http://Example.com/blog?p=1", project: "example-com"},
		"scheme relative": {source: "//www.example.org", want: "http://www.example.org", project: "www-example-org"},
		"whitespace":      {source: "  https://example.com/ \n", want: "https://example.com/", project: "example-com"},
		"https kept":      {source: "https://example.com", want: "https://example.com", project: "example-com"},
		"host and port":   {source: "localhost:8080", want: "http://localhost:8080", project: "localhost"},
		"empty":           {source: " ", want: ""},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := NormalizeSource(tc.source)
			testutil.AssertEqual(t, got, tc.want)
			if tc.project == "" {
				return
			}
			project, err := ProjectName(got)
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, project, tc.project)
		})
	}
}

func TestKind(t *testing.T) {
	testutil.AssertEqual(t, Kind(nil), nil)
	testutil.AssertEqual(t, Kind(errors.New("boom")), ErrInternal)
	for _, k := range kinds {
		testutil.AssertEqual(t, Kind(tag(k, errors.New("boom"))), k)
	}
	testutil.AssertEqual(t, tag(ErrDeployFailed, errors.New("boom")).Error(), "deploy failed: boom")
}

func TestStateString(t *testing.T) {
	testutil.AssertEqual(t, FilesUploaded.String(), "files uploaded")
	testutil.AssertEqual(t, State(42).String(), "State(42)")
}
