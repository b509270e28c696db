// Package services – AnalyticsService
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/nexussoftworks/go-keybot/internal/config"
)

// Overview is the upstream key analytics snapshot.
type Overview struct {
	Clicks           int64    `json:"clicks"`
	Checkpoints      int64    `json:"checkpoints"`
	KeysCreated      int64    `json:"keys_created"`
	KeysGenerated    int64    `json:"keys_generated"`
	KeysUsed         int64    `json:"keys_used"`
	ScriptExecutions int64    `json:"script_executions"`
	TopCountries     []string `json:"top_countries"`
	TopExecutors     []string `json:"top_executors"`
}

// AnalyticsService fetches usage statistics from the upstream key API.
type AnalyticsService struct {
	// Config carries the upstream base URL and API key.
	Config config.AnalyticsConfig
	// HTTP performs upstream calls; its timeout bounds each call.
	HTTP *http.Client
	// Log is the service logger.
	Log zerolog.Logger
}

// Enabled reports whether the analytics integration is configured.
func (s *AnalyticsService) Enabled() bool {
	return s.Config.APIURL != "" && s.Config.APIKey != ""
}

// FetchOverview retrieves the current analytics snapshot.
func (s *AnalyticsService) FetchOverview(ctx context.Context) (*Overview, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("%w: analytics not configured", ErrDeliveryFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Config.APIURL+"/analytics/overview", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.Config.APIKey)

	res, err := s.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrDeliveryFailed, res.StatusCode, truncate(string(raw), 300))
	}

	var ov Overview
	if err := json.Unmarshal(raw, &ov); err != nil {
		return nil, fmt.Errorf("%w: malformed overview: %v", ErrInvalidKeyResponse, err)
	}
	return &ov, nil
}
