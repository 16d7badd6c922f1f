// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

var errOAuthNotConfigured = errors.New("OAuth client credentials are not configured")

type exchangeResponse struct {
	AccessToken string `json:"access_token"`
}

// exchange trades an OAuth authorization code for an access token.
func (s *Server) exchange(ctx context.Context, code string) (string, error) {
	if s.c.ClientID == "" || s.c.ClientSecret == "" {
		return "", errOAuthNotConfigured
	}

	form := url.Values{
		"client_id":     {s.c.ClientID},
		"client_secret": {s.c.ClientSecret},
		"code":          {code},
		"redirect_uri":  {s.c.RedirectURI},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.c.ExchangeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := s.c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wanted 200, got %d: %s", res.StatusCode, b)
	}

	var er exchangeResponse
	if err := json.Unmarshal(b, &er); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if er.AccessToken == "" {
		return "", errors.New("token response has no access_token")
	}
	return er.AccessToken, nil
}
