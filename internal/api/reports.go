package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"raharpa/internal/models"
)

const reportsTimeout = 10 * time.Second

// ReportsAPI is the read-only surface for the monthly reports ("laporan").
// Implementations return a non-nil zero-valued record alongside any failure,
// so callers may render placeholders without a nil check.
type ReportsAPI interface {
	Monthly(ctx context.Context, month string) (*models.Report, error)
	Summary(ctx context.Context, month string) (*models.ReportSummary, error)
}

// ReportsClient implements ReportsAPI against the backend /laporan endpoints.
type ReportsClient struct {
	base *Client
}

var _ ReportsAPI = (*ReportsClient)(nil)

// NewReportsClient creates the reports resource client.
func NewReportsClient(base *Client) *ReportsClient {
	return &ReportsClient{base: base}
}

// Monthly fetches the per-day report rows for a month, falling back to an
// empty report on failure.
func (r *ReportsClient) Monthly(ctx context.Context, month string) (*models.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, reportsTimeout)
	defer cancel()

	path := "/laporan"
	if month != "" {
		path += "?month=" + url.QueryEscape(month)
	}

	var report models.Report
	if err := r.base.do(ctx, http.MethodGet, path, nil, &report); err != nil {
		r.base.log.Sugar().Warnf("Failed to fetch monthly report: %s", err)
		return &models.Report{Month: month, Rows: []models.ReportRow{}}, err
	}
	return &report, nil
}

// Summary fetches the headline numbers for a month.
func (r *ReportsClient) Summary(ctx context.Context, month string) (*models.ReportSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, reportsTimeout)
	defer cancel()

	path := "/laporan/summary"
	if month != "" {
		path += "?month=" + url.QueryEscape(month)
	}

	var summary models.ReportSummary
	if err := r.base.do(ctx, http.MethodGet, path, nil, &summary); err != nil {
		r.base.log.Sugar().Warnf("Failed to fetch report summary: %s", err)
		return &models.ReportSummary{Month: month}, err
	}
	return &summary, nil
}
