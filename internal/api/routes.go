package api

import (
	"context"
	"errors"
	"net/http"
)

// OptimizeRoute asks the backend to compute an optimized collection route
// from the given start location. The optimization itself is owned by the
// backend — this client only consumes its output.
func (c *Client) OptimizeRoute(ctx context.Context, start Location, driverID string) (*Route, error) {
	body := map[string]any{
		"startLocation": start,
		"driverId":      driverID,
	}

	var parsed struct {
		Route Route `json:"route"`
	}

	if err := c.DoJSON(ctx, http.MethodPost, "/routes/optimize", body, &parsed); err != nil {
		return nil, err
	}

	return &parsed.Route, nil
}

// ListRoutes fetches the route history snapshot.
func (c *Client) ListRoutes(ctx context.Context) ([]Route, error) {
	var parsed struct {
		Routes []Route `json:"routes"`
	}

	if err := c.DoJSON(ctx, http.MethodGet, "/routes/history", nil, &parsed); err != nil {
		return nil, err
	}

	return parsed.Routes, nil
}

// ActiveRoute fetches the driver's currently assigned route. Returns
// (nil, nil) when the driver has no active route — the backend signals
// that with a 404, which is a display state here, not a failure.
func (c *Client) ActiveRoute(ctx context.Context, driverID string) (*Route, error) {
	var parsed struct {
		Route Route `json:"route"`
	}

	err := c.DoJSON(ctx, http.MethodGet, "/routes/driver/"+driverID+"/active", nil, &parsed)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &parsed.Route, nil
}
