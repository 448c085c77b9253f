package api

import (
	"context"
	"net/http"
)

// ListDrivers fetches all fleet drivers.
func (c *Client) ListDrivers(ctx context.Context) ([]Driver, error) {
	var parsed struct {
		Drivers []Driver `json:"drivers"`
	}

	if err := c.DoJSON(ctx, http.MethodGet, "/users/drivers", nil, &parsed); err != nil {
		return nil, err
	}

	return parsed.Drivers, nil
}

// GetDriver fetches a single driver by driver id.
func (c *Client) GetDriver(ctx context.Context, driverID string) (*Driver, error) {
	var parsed struct {
		Driver Driver `json:"driver"`
	}

	if err := c.DoJSON(ctx, http.MethodGet, "/users/drivers/"+driverID, nil, &parsed); err != nil {
		return nil, err
	}

	return &parsed.Driver, nil
}

// SetDriverActive toggles a driver's active flag.
func (c *Client) SetDriverActive(ctx context.Context, id string, active bool) error {
	body := map[string]any{"isActive": active}

	return c.DoJSON(ctx, http.MethodPut, "/users/"+id, body, nil)
}
