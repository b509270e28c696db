// Package services – BypassService
//
// This file implements the link bypass relay: a submitted URL is forwarded
// to the upstream bypass API and the resolved destination link is extracted
// from whatever response shape the upstream returns that day.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nexussoftworks/go-keybot/internal/config"
)

// urlPattern matches the first absolute URL in free-form text. Used as the
// last extraction fallback when the upstream response is not structured JSON.
var urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

// BypassService relays URLs to the upstream bypass API.
type BypassService struct {
	// Config carries the upstream endpoint and API key.
	Config config.BypassConfig
	// HTTP performs relay calls; its timeout bounds each call.
	HTTP *http.Client
	// Log is the service logger.
	Log zerolog.Logger
}

// Enabled reports whether the relay is configured.
func (s *BypassService) Enabled() bool {
	return s.Config.APIURL != "" && s.Config.APIKey != ""
}

// Resolve forwards target to the bypass API and returns the resolved
// destination link. The upstream response shape varies; Resolve tries the
// known JSON fields first and falls back to scanning the raw body for a URL.
func (s *BypassService) Resolve(ctx context.Context, target string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("%w: bypass relay not configured", ErrDeliveryFailed)
	}

	endpoint := s.Config.APIURL + "?url=" + url.QueryEscape(target)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("x-api-key", s.Config.APIKey)

	res, err := s.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", ErrDeliveryFailed, res.StatusCode, truncate(string(raw), 300))
	}

	link := extractLink(raw)
	if link == "" {
		return "", fmt.Errorf("%w: no link in response: %s", ErrInvalidKeyResponse, truncate(string(raw), 300))
	}
	return link, nil
}

// extractLink pulls the destination link out of an upstream response. JSON
// fields are tried in order (link, url, result, data.link, data.url), then
// the first URL occurring anywhere in the raw text.
func extractLink(raw []byte) string {
	var parsed struct {
		Link   string `json:"link"`
		URL    string `json:"url"`
		Result string `json:"result"`
		Data   struct {
			Link string `json:"link"`
			URL  string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		for _, c := range []string{parsed.Link, parsed.URL, parsed.Result, parsed.Data.Link, parsed.Data.URL} {
			if c != "" {
				return c
			}
		}
	}
	if m := urlPattern.Find(raw); m != nil {
		return strings.TrimSpace(string(m))
	}
	return ""
}
