package views

import (
	"context"
	"encoding/json"

	"raharpa/internal/api"
	"raharpa/internal/bridge"
	"raharpa/internal/models"
	"raharpa/internal/pkg/logger"
)

const reportsSubscription = "reports-view"

// ReportsSnapshot is the read model the UI host serves for the reports page.
type ReportsSnapshot struct {
	Report  models.Report        `json:"report"`
	Summary models.ReportSummary `json:"summary"`
	Month   string               `json:"month,omitempty"`
	Offline bool                 `json:"offline"`
}

// ReportsView shows the monthly report. The laporan-updated event is a
// delta notification, so updates arrive through the bridge's re-fetch.
type ReportsView struct {
	disp *Dispatcher
	api  api.ReportsAPI
	br   *bridge.Bridge
	log  *logger.Logger

	// Confined to the dispatcher goroutine.
	report  models.Report
	summary models.ReportSummary
	month   string
	offline bool
	cancel  func()
}

// NewReportsView creates the reports view controller.
func NewReportsView(disp *Dispatcher, reportsAPI api.ReportsAPI, br *bridge.Bridge, l *logger.Logger) *ReportsView {
	return &ReportsView{disp: disp, api: reportsAPI, br: br, log: l}
}

// Mount subscribes to the reports bridge and fetches the current month.
func (v *ReportsView) Mount(ctx context.Context) {
	cancel, err := v.br.Subscribe(ctx, reportsSubscription, func(u bridge.Update) {
		v.disp.Post(func() { v.apply(u) })
	})
	if err != nil {
		v.log.Sugar().Warnf("Reports view mounted without real-time updates: %s", err)
	}

	report, fetchErr := v.api.Monthly(ctx, "")
	summary, _ := v.api.Summary(ctx, "")
	v.disp.Post(func() {
		v.cancel = cancel
		v.report = *report
		v.summary = *summary
		v.offline = fetchErr != nil || cancel == nil
	})
}

// Unmount unregisters the bridge subscription.
func (v *ReportsView) Unmount() {
	v.disp.Call(func() {
		if v.cancel != nil {
			v.cancel()
			v.cancel = nil
		}
	})
}

// Snapshot returns a consistent copy of the view state.
func (v *ReportsView) Snapshot() ReportsSnapshot {
	var snap ReportsSnapshot
	v.disp.Call(func() {
		snap.Report = v.report
		snap.Summary = v.summary
		snap.Month = v.month
		snap.Offline = v.offline
	})
	return snap
}

// SetMonth fetches the report for another month.
func (v *ReportsView) SetMonth(ctx context.Context, month string) {
	report, err := v.api.Monthly(ctx, month)
	summary, _ := v.api.Summary(ctx, month)
	v.disp.Post(func() {
		v.month = month
		if err != nil {
			v.offline = true
			return
		}
		v.report = *report
		v.summary = *summary
		v.offline = false
	})
}

// apply merges one bridge update into the local state. Runs on the
// dispatcher goroutine.
func (v *ReportsView) apply(u bridge.Update) {
	if u.Event != bridge.RefreshEvent {
		return
	}
	var report models.Report
	if err := json.Unmarshal(u.Payload, &report); err != nil {
		v.log.Sugar().Warnf("Dropping unreadable refresh payload: %s", err)
		return
	}
	v.report = report
	v.offline = false
}
