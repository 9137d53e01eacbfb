package api

import (
	"context"
	"net/http"
	"time"

	"raharpa/internal/models"
)

const ordersTimeout = 15 * time.Second

// OrdersAPI is the request/response surface for the orders resource.
type OrdersAPI interface {
	List(ctx context.Context) ([]models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	Create(ctx context.Context, order models.Order) (*models.Order, error)
	Update(ctx context.Context, id string, order models.Order) (*models.Order, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error)
	Remove(ctx context.Context, id string) error
}

// OrdersClient implements OrdersAPI against the backend /orders endpoints.
type OrdersClient struct {
	base *Client
}

var _ OrdersAPI = (*OrdersClient)(nil)

// NewOrdersClient creates the orders resource client.
func NewOrdersClient(base *Client) *OrdersClient {
	return &OrdersClient{base: base}
}

// List fetches all orders, falling back to an empty collection on failure.
func (o *OrdersClient) List(ctx context.Context) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, ordersTimeout)
	defer cancel()

	var orders []models.Order
	if err := o.base.do(ctx, http.MethodGet, "/orders", nil, &orders); err != nil {
		o.base.log.Sugar().Warnf("Failed to list orders: %s", err)
		return []models.Order{}, err
	}
	return orders, nil
}

// ListByUser fetches the orders belonging to one user.
func (o *OrdersClient) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, ordersTimeout)
	defer cancel()

	var orders []models.Order
	if err := o.base.do(ctx, http.MethodGet, "/orders/user/"+userID, nil, &orders); err != nil {
		o.base.log.Sugar().Warnf("Failed to list orders for user %s: %s", userID, err)
		return []models.Order{}, err
	}
	return orders, nil
}

// Create registers a new order on the admin's behalf.
func (o *OrdersClient) Create(ctx context.Context, order models.Order) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, ordersTimeout)
	defer cancel()

	var created models.Order
	if err := o.base.do(ctx, http.MethodPost, "/orders", order, &created); err != nil {
		return nil, err
	}
	o.base.broadcast(models.EventOrderCreated, created)
	return &created, nil
}

// Update edits an order's mutable fields (status, method, location link).
func (o *OrdersClient) Update(ctx context.Context, id string, order models.Order) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, ordersTimeout)
	defer cancel()

	var updated models.Order
	if err := o.base.do(ctx, http.MethodPut, "/orders/"+id, order, &updated); err != nil {
		return nil, err
	}
	o.base.broadcast(models.EventOrderUpdated, updated)
	return &updated, nil
}

// UpdateStatus transitions an order to a new lifecycle state.
func (o *OrdersClient) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, ordersTimeout)
	defer cancel()

	var updated models.Order
	payload := map[string]string{"status": string(status)}
	if err := o.base.do(ctx, http.MethodPatch, "/orders/"+id+"/status", payload, &updated); err != nil {
		return nil, err
	}
	o.base.broadcast(models.EventOrderStatusUpdated, map[string]string{
		"orderId": id,
		"status":  string(status),
	})
	return &updated, nil
}

// Remove deletes an order.
func (o *OrdersClient) Remove(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, ordersTimeout)
	defer cancel()

	if err := o.base.do(ctx, http.MethodDelete, "/orders/"+id, nil, nil); err != nil {
		return err
	}
	o.base.broadcast(models.EventOrderDeleted, map[string]string{"orderId": id})
	return nil
}
