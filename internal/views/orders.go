package views

import (
	"context"
	"encoding/json"

	"raharpa/internal/api"
	"raharpa/internal/bridge"
	"raharpa/internal/models"
	"raharpa/internal/pkg/logger"
)

const ordersSubscription = "orders-view"

// OrdersSnapshot is the read model the UI host serves for the orders page.
type OrdersSnapshot struct {
	Orders     []models.Order     `json:"orders"`
	Filter     models.OrderStatus `json:"filter,omitempty"`
	SelectedID string             `json:"selectedId,omitempty"`
	Offline    bool               `json:"offline"`
}

// OrdersView is the admin orders surface.
type OrdersView struct {
	disp *Dispatcher
	api  api.OrdersAPI
	br   *bridge.Bridge
	log  *logger.Logger

	// Confined to the dispatcher goroutine.
	orders     []models.Order
	filter     models.OrderStatus
	selectedID string
	offline    bool
	cancel     func()
}

// NewOrdersView creates the orders view controller.
func NewOrdersView(disp *Dispatcher, ordersAPI api.OrdersAPI, br *bridge.Bridge, l *logger.Logger) *OrdersView {
	return &OrdersView{disp: disp, api: ordersAPI, br: br, log: l}
}

// Mount subscribes to the orders bridge and performs the initial fetch.
func (v *OrdersView) Mount(ctx context.Context) {
	cancel, err := v.br.Subscribe(ctx, ordersSubscription, func(u bridge.Update) {
		v.disp.Post(func() { v.apply(u) })
	})
	if err != nil {
		v.log.Sugar().Warnf("Orders view mounted without real-time updates: %s", err)
	}

	orders, fetchErr := v.api.List(ctx)
	v.disp.Post(func() {
		v.cancel = cancel
		v.orders = orders
		v.offline = fetchErr != nil || cancel == nil
	})
}

// Unmount unregisters the bridge subscription.
func (v *OrdersView) Unmount() {
	v.disp.Call(func() {
		if v.cancel != nil {
			v.cancel()
			v.cancel = nil
		}
	})
}

// Snapshot returns a consistent copy of the view state with the status
// filter applied.
func (v *OrdersView) Snapshot() OrdersSnapshot {
	var snap OrdersSnapshot
	v.disp.Call(func() {
		snap.Filter = v.filter
		snap.SelectedID = v.selectedID
		snap.Offline = v.offline
		snap.Orders = make([]models.Order, 0, len(v.orders))
		for _, order := range v.orders {
			if v.filter == "" || order.Status == v.filter {
				snap.Orders = append(snap.Orders, order)
			}
		}
	})
	return snap
}

// SetFilter narrows the listed orders to one status; empty clears it.
func (v *OrdersView) SetFilter(status models.OrderStatus) {
	v.disp.Post(func() { v.filter = status })
}

// Select marks an order as the current selection.
func (v *OrdersView) Select(id string) {
	v.disp.Post(func() { v.selectedID = id })
}

// Refresh re-fetches the order list on explicit user request.
func (v *OrdersView) Refresh(ctx context.Context) {
	orders, err := v.api.List(ctx)
	v.disp.Post(func() {
		if err != nil {
			v.offline = true
			return
		}
		v.orders = orders
		v.offline = false
	})
}

// ForUser fetches the orders belonging to one user. The result is served
// directly and does not disturb the admin's full listing.
func (v *OrdersView) ForUser(ctx context.Context, userID string) ([]models.Order, error) {
	return v.api.ListByUser(ctx, userID)
}

// Create registers a new order on the admin's behalf.
func (v *OrdersView) Create(ctx context.Context, order models.Order) (*models.Order, error) {
	created, err := v.api.Create(ctx, order)
	if err != nil {
		return nil, err
	}
	v.disp.Post(func() { v.upsert(*created) })
	return created, nil
}

// Update edits an order's status, method, or location link.
func (v *OrdersView) Update(ctx context.Context, id string, order models.Order) (*models.Order, error) {
	updated, err := v.api.Update(ctx, id, order)
	if err != nil {
		return nil, err
	}
	v.disp.Post(func() { v.upsert(*updated) })
	return updated, nil
}

// UpdateStatus transitions an order to a new lifecycle state.
func (v *OrdersView) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	updated, err := v.api.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	v.disp.Post(func() { v.upsert(*updated) })
	return updated, nil
}

// Remove deletes an order.
func (v *OrdersView) Remove(ctx context.Context, id string) error {
	if err := v.api.Remove(ctx, id); err != nil {
		return err
	}
	v.disp.Post(func() { v.drop(id) })
	return nil
}

// apply merges one bridge update into the local state. Runs on the
// dispatcher goroutine.
func (v *OrdersView) apply(u bridge.Update) {
	switch u.Event {
	case models.EventOrderCreated, models.EventOrderUpdated:
		var order models.Order
		if err := json.Unmarshal(u.Payload, &order); err != nil {
			v.log.Sugar().Warnf("Dropping unreadable %s payload: %s", u.Event, err)
			return
		}
		v.upsert(order)
	case models.EventOrderDeleted:
		var payload struct {
			OrderID string `json:"orderId"`
		}
		if err := json.Unmarshal(u.Payload, &payload); err != nil {
			v.log.Sugar().Warnf("Dropping unreadable %s payload: %s", u.Event, err)
			return
		}
		v.drop(payload.OrderID)
	case bridge.RefreshEvent:
		var orders []models.Order
		if err := json.Unmarshal(u.Payload, &orders); err != nil {
			v.log.Sugar().Warnf("Dropping unreadable refresh payload: %s", err)
			return
		}
		v.orders = orders
	}
	v.offline = false
}

func (v *OrdersView) upsert(order models.Order) {
	for i := range v.orders {
		if v.orders[i].ID == order.ID {
			v.orders[i] = order
			return
		}
	}
	v.orders = append(v.orders, order)
}

func (v *OrdersView) drop(id string) {
	for i := range v.orders {
		if v.orders[i].ID == id {
			v.orders = append(v.orders[:i], v.orders[i+1:]...)
			if v.selectedID == id {
				v.selectedID = ""
			}
			return
		}
	}
}
