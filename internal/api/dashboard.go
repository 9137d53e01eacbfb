package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"raharpa/internal/models"
)

// Dashboard stats back a landing page, so they get the tightest bound.
const dashboardTimeout = 5 * time.Second

// DashboardAPI is the read-only surface for the dashboard aggregates.
// Implementations return a non-nil zero-valued record alongside any failure,
// so callers may render placeholders without a nil check.
type DashboardAPI interface {
	Stats(ctx context.Context, date string) (*models.DashboardStats, error)
}

// DashboardClient implements DashboardAPI against the backend /dashboard
// endpoint.
type DashboardClient struct {
	base *Client
}

var _ DashboardAPI = (*DashboardClient)(nil)

// NewDashboardClient creates the dashboard resource client.
func NewDashboardClient(base *Client) *DashboardClient {
	return &DashboardClient{base: base}
}

// Stats fetches the server-computed aggregates for a date. On failure it
// returns a zero-valued stats record alongside the typed failure so the
// dashboard can render placeholders instead of crashing.
func (d *DashboardClient) Stats(ctx context.Context, date string) (*models.DashboardStats, error) {
	ctx, cancel := context.WithTimeout(ctx, dashboardTimeout)
	defer cancel()

	path := "/dashboard"
	if date != "" {
		path += "?date=" + url.QueryEscape(date)
	}

	var stats models.DashboardStats
	if err := d.base.do(ctx, http.MethodGet, path, nil, &stats); err != nil {
		d.base.log.Sugar().Warnf("Failed to fetch dashboard stats: %s", err)
		return &models.DashboardStats{Date: date}, err
	}
	return &stats, nil
}
