package api

import (
	"context"
	"net/http"
)

// Settings is the backend's fleet-wide tuning document: alerting
// thresholds and route generation policy.
type Settings struct {
	PreAlertThreshold      float64 `json:"preAlertThreshold"`
	CriticalThreshold      float64 `json:"criticalThreshold"`
	AutoRouteGeneration    bool    `json:"autoRouteGeneration"`
	MaxBinsPerRoute        int     `json:"maxBinsPerRoute"`
	RefreshIntervalMinutes int     `json:"refreshIntervalMinutes"`
}

// GetSettings fetches the current system settings.
func (c *Client) GetSettings(ctx context.Context) (*Settings, error) {
	var parsed Settings

	if err := c.DoJSON(ctx, http.MethodGet, "/settings", nil, &parsed); err != nil {
		return nil, err
	}

	return &parsed, nil
}

// UpdateSettings replaces the system settings document.
func (c *Client) UpdateSettings(ctx context.Context, settings Settings) error {
	return c.DoJSON(ctx, http.MethodPut, "/settings", settings, nil)
}
