package views

import (
	"context"
	"encoding/json"

	"raharpa/internal/api"
	"raharpa/internal/bridge"
	"raharpa/internal/models"
	"raharpa/internal/pkg/logger"
)

const dashboardSubscription = "dashboard-view"

// DashboardSnapshot is the read model the UI host serves for the landing
// page.
type DashboardSnapshot struct {
	Stats   models.DashboardStats `json:"stats"`
	Date    string                `json:"date,omitempty"`
	Offline bool                  `json:"offline"`
}

// DashboardView shows the server-computed aggregates for one date. The
// backend pushes full stats on dashboard-update, so no re-fetch is needed
// for pushes; changing the date triggers an explicit fetch.
type DashboardView struct {
	disp *Dispatcher
	api  api.DashboardAPI
	br   *bridge.Bridge
	log  *logger.Logger

	// Confined to the dispatcher goroutine.
	stats   models.DashboardStats
	date    string
	offline bool
	cancel  func()
}

// NewDashboardView creates the dashboard view controller.
func NewDashboardView(disp *Dispatcher, dashboardAPI api.DashboardAPI, br *bridge.Bridge, l *logger.Logger) *DashboardView {
	return &DashboardView{disp: disp, api: dashboardAPI, br: br, log: l}
}

// Mount subscribes to the dashboard bridge and fetches today's stats.
func (v *DashboardView) Mount(ctx context.Context) {
	cancel, err := v.br.Subscribe(ctx, dashboardSubscription, func(u bridge.Update) {
		v.disp.Post(func() { v.apply(u) })
	})
	if err != nil {
		v.log.Sugar().Warnf("Dashboard view mounted without real-time updates: %s", err)
	}

	stats, fetchErr := v.api.Stats(ctx, "")
	v.disp.Post(func() {
		v.cancel = cancel
		v.stats = *stats
		v.offline = fetchErr != nil || cancel == nil
	})
}

// Unmount unregisters the bridge subscription.
func (v *DashboardView) Unmount() {
	v.disp.Call(func() {
		if v.cancel != nil {
			v.cancel()
			v.cancel = nil
		}
	})
}

// Snapshot returns a consistent copy of the view state.
func (v *DashboardView) Snapshot() DashboardSnapshot {
	var snap DashboardSnapshot
	v.disp.Call(func() {
		snap.Stats = v.stats
		snap.Date = v.date
		snap.Offline = v.offline
	})
	return snap
}

// SetDate fetches the aggregates for another date. The stats stay on the
// last known values when the fetch fails.
func (v *DashboardView) SetDate(ctx context.Context, date string) {
	stats, err := v.api.Stats(ctx, date)
	v.disp.Post(func() {
		v.date = date
		if err != nil {
			v.offline = true
			return
		}
		v.stats = *stats
		v.offline = false
	})
}

// apply merges one bridge update into the local state. Runs on the
// dispatcher goroutine.
func (v *DashboardView) apply(u bridge.Update) {
	if u.Event != models.EventDashboardUpdate && u.Event != bridge.RefreshEvent {
		return
	}
	var stats models.DashboardStats
	if err := json.Unmarshal(u.Payload, &stats); err != nil {
		v.log.Sugar().Warnf("Dropping unreadable dashboard payload: %s", err)
		return
	}
	v.stats = stats
	v.offline = false
}
