// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileConfig is the configuration file.
type fileConfig struct {
	Token       string `yaml:"token"`
	API         string `yaml:"api"`
	Target      string `yaml:"target"`
	Staging     string `yaml:"staging"`
	Concurrency int    `yaml:"concurrency"`
	Minify      bool   `yaml:"minify"`
}

// readConfig reads the configuration file at path. A missing file is not an
// error unless mustExist is set.
func readConfig(path string, mustExist bool) (*fileConfig, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) && !mustExist {
		return &fileConfig{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var fc fileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &fc, nil
}

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "siteimport", "config.yaml"), nil
}

// nowToken reads the token saved by the now command-line client.
func nowToken(home string) (string, error) {
	b, err := os.ReadFile(filepath.Join(home, ".now", "auth.json"))
	if err != nil {
		return "", err
	}
	var auth struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(b, &auth); err != nil {
		return "", fmt.Errorf("parsing now credentials: %w", err)
	}
	return auth.Token, nil
}

// settings are the effective options of a run.
type settings struct {
	token       string
	api         string
	target      string
	staging     string
	concurrency int
	minify      bool
}

// resolve merges flags, environment, the configuration file and now
// credentials, in this order of precedence.
func (a *app) resolve(getenv func(string) string, home string) (*settings, error) {
	path, mustExist := a.config, a.config != ""
	if path == "" {
		var err error
		path, err = defaultConfigPath()
		if err != nil {
			return nil, err
		}
	}
	fc, err := readConfig(path, mustExist)
	if err != nil {
		return nil, err
	}

	s := &settings{
		token:       first(a.token, getenv("SITEIMPORT_TOKEN"), fc.Token),
		api:         first(a.api, getenv("SITEIMPORT_API"), fc.API),
		target:      first(a.target, fc.Target),
		staging:     first(a.staging, fc.Staging),
		concurrency: a.concurrency,
		minify:      a.minify || fc.Minify,
	}
	if s.concurrency == 0 {
		s.concurrency = fc.Concurrency
	}

	if s.token == "" && home != "" {
		s.token, err = nowToken(home)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if s.token == "" {
		return nil, errors.New("no token: pass -token, set SITEIMPORT_TOKEN or log in with now")
	}
	return s, nil
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
