package api

import (
	"context"
	"errors"
	"net/http"
)

// binListResponse mirrors the backend's bin collection envelope.
type binListResponse struct {
	Success bool  `json:"success"`
	Bins    []Bin `json:"bins"`
	Count   int   `json:"count"`
}

// ListBins fetches a full snapshot of all bins.
func (c *Client) ListBins(ctx context.Context) ([]Bin, error) {
	var parsed binListResponse

	if err := c.DoJSON(ctx, http.MethodGet, "/bins", nil, &parsed); err != nil {
		return nil, err
	}

	return parsed.Bins, nil
}

// ListCriticalBins fetches only bins the backend has flagged CRITICAL.
func (c *Client) ListCriticalBins(ctx context.Context) ([]Bin, error) {
	var parsed binListResponse

	if err := c.DoJSON(ctx, http.MethodGet, "/bins/critical", nil, &parsed); err != nil {
		return nil, err
	}

	return parsed.Bins, nil
}

// GetBin fetches a single bin by its database id.
func (c *Client) GetBin(ctx context.Context, id string) (*Bin, error) {
	var parsed struct {
		Bin Bin `json:"bin"`
	}

	if err := c.DoJSON(ctx, http.MethodGet, "/bins/"+id, nil, &parsed); err != nil {
		return nil, err
	}

	return &parsed.Bin, nil
}

// CreateBin registers a new bin.
func (c *Client) CreateBin(ctx context.Context, bin Bin) error {
	return c.DoJSON(ctx, http.MethodPost, "/bins", bin, nil)
}

// UpdateBin applies a partial update to a bin.
func (c *Client) UpdateBin(ctx context.Context, id string, updates map[string]any) error {
	return c.DoJSON(ctx, http.MethodPut, "/bins/"+id, updates, nil)
}

// DeleteBin removes a bin.
func (c *Client) DeleteBin(ctx context.Context, id string) error {
	return c.DoJSON(ctx, http.MethodDelete, "/bins/"+id, nil, nil)
}

// ClassifyWaste records a waste classification observation for a bin.
func (c *Client) ClassifyWaste(ctx context.Context, binID, wasteType string, confidence float64) error {
	body := map[string]any{
		"wasteType":  wasteType,
		"confidence": confidence,
	}

	return c.DoJSON(ctx, http.MethodPost, "/bins/"+binID+"/classify-waste", body, nil)
}

// GetPrediction fetches the backend's fill forecast for a bin. Returns
// (nil, nil) when no forecast exists yet.
func (c *Client) GetPrediction(ctx context.Context, binID string) (*Prediction, error) {
	var parsed struct {
		Prediction Prediction `json:"prediction"`
	}

	err := c.DoJSON(ctx, http.MethodGet, "/bins/"+binID+"/prediction", nil, &parsed)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &parsed.Prediction, nil
}
