package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"raharpa/internal/models"
)

const itemsTimeout = 10 * time.Second

// ItemsAPI is the request/response surface for the items resource.
type ItemsAPI interface {
	List(ctx context.Context) ([]models.Item, error)
	ListByStatus(ctx context.Context, status models.ItemStatus) ([]models.Item, error)
	Create(ctx context.Context, item models.Item, image *FileUpload) (*models.Item, error)
	Update(ctx context.Context, id string, item models.Item) (*models.Item, error)
	Remove(ctx context.Context, id string) error
	Send(ctx context.Context, id, recipientID string) (*models.Item, error)
}

// ItemsClient implements ItemsAPI against the backend /items endpoints.
type ItemsClient struct {
	base *Client
}

var _ ItemsAPI = (*ItemsClient)(nil)

// NewItemsClient creates the items resource client.
func NewItemsClient(base *Client) *ItemsClient {
	return &ItemsClient{base: base}
}

// List fetches the full item inventory, falling back to an empty collection
// on failure.
func (i *ItemsClient) List(ctx context.Context) ([]models.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, itemsTimeout)
	defer cancel()

	var items []models.Item
	if err := i.base.do(ctx, http.MethodGet, "/items", nil, &items); err != nil {
		i.base.log.Sugar().Warnf("Failed to list items: %s", err)
		return []models.Item{}, err
	}
	return items, nil
}

// ListByStatus fetches items filtered by availability.
func (i *ItemsClient) ListByStatus(ctx context.Context, status models.ItemStatus) ([]models.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, itemsTimeout)
	defer cancel()

	var items []models.Item
	if err := i.base.do(ctx, http.MethodGet, "/items/status/"+string(status), nil, &items); err != nil {
		i.base.log.Sugar().Warnf("Failed to list items by status: %s", err)
		return []models.Item{}, err
	}
	return items, nil
}

// Create registers a new item. When an image is supplied the request goes up
// as multipart form data; otherwise a plain JSON body is used.
func (i *ItemsClient) Create(ctx context.Context, item models.Item, image *FileUpload) (*models.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, itemsTimeout)
	defer cancel()

	var created models.Item
	if image != nil {
		fields := map[string]string{
			"code":   item.Code,
			"price":  strconv.FormatInt(item.Price, 10),
			"status": string(item.Status),
			"date":   item.Date.Format(time.RFC3339),
		}
		if err := i.base.doMultipart(ctx, http.MethodPost, "/items", fields, image, &created); err != nil {
			return nil, err
		}
	} else {
		if err := i.base.do(ctx, http.MethodPost, "/items", item, &created); err != nil {
			return nil, err
		}
	}

	i.base.broadcast(models.EventItemAdded, created)
	return &created, nil
}

// Update edits an existing item.
func (i *ItemsClient) Update(ctx context.Context, id string, item models.Item) (*models.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, itemsTimeout)
	defer cancel()

	var updated models.Item
	if err := i.base.do(ctx, http.MethodPut, "/items/"+id, item, &updated); err != nil {
		return nil, err
	}
	i.base.broadcast(models.EventItemUpdated, updated)
	return &updated, nil
}

// Remove deletes an item from the inventory.
func (i *ItemsClient) Remove(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, itemsTimeout)
	defer cancel()

	if err := i.base.do(ctx, http.MethodDelete, "/items/"+id, nil, nil); err != nil {
		return err
	}
	i.base.broadcast(models.EventItemDeleted, map[string]string{"itemId": id})
	return nil
}

// Send marks an item as sent to a user, transitioning it to SoldOut and
// recording the recipient.
func (i *ItemsClient) Send(ctx context.Context, id, recipientID string) (*models.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, itemsTimeout)
	defer cancel()

	var sent models.Item
	payload := map[string]string{"userId": recipientID}
	if err := i.base.do(ctx, http.MethodPost, "/items/"+id+"/send", payload, &sent); err != nil {
		return nil, err
	}
	i.base.broadcast(models.EventItemSent, sent)
	return &sent, nil
}
