package api

import (
	"context"
	"net/http"
	"time"

	"raharpa/internal/models"
)

const usersTimeout = 10 * time.Second

// UsersAPI is the request/response surface for the users resource.
type UsersAPI interface {
	List(ctx context.Context) ([]models.User, error)
	Login(ctx context.Context, name string) (*models.Session, error)
	Logout(ctx context.Context, id string) error
	ForceLogin(ctx context.Context, id string) (*models.User, error)
	Remove(ctx context.Context, id string) error
}

// UsersClient implements UsersAPI against the backend /users endpoints.
type UsersClient struct {
	base *Client
}

var _ UsersAPI = (*UsersClient)(nil)

// NewUsersClient creates the users resource client.
func NewUsersClient(base *Client) *UsersClient {
	return &UsersClient{base: base}
}

// List fetches all users. On failure it returns an empty collection together
// with the typed failure, so callers can render "no data" instead of crashing.
func (u *UsersClient) List(ctx context.Context) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, usersTimeout)
	defer cancel()

	var users []models.User
	if err := u.base.do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		u.base.log.Sugar().Warnf("Failed to list users: %s", err)
		return []models.User{}, err
	}
	return users, nil
}

// Login authenticates an end user by name. A session is only returned on an
// explicit success:true response.
func (u *UsersClient) Login(ctx context.Context, name string) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, usersTimeout)
	defer cancel()

	var data struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	payload := map[string]string{"name": name}
	if err := u.base.do(ctx, http.MethodPost, "/users/login", payload, &data); err != nil {
		return nil, err
	}

	u.base.broadcast(models.EventUserLoggedIn, map[string]string{"userId": data.ID})
	return &models.Session{
		SubjectID:   data.ID,
		DisplayName: data.Name,
		Role:        models.RoleUser,
		IssuedAt:    time.Now(),
	}, nil
}

// Logout tells the backend the user left. The caller clears local state
// regardless of this call's outcome.
func (u *UsersClient) Logout(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, usersTimeout)
	defer cancel()

	if err := u.base.do(ctx, http.MethodPost, "/users/logout/"+id, nil, nil); err != nil {
		return err
	}
	u.base.broadcast(models.EventUserLoggedOut, map[string]string{"userId": id})
	return nil
}

// ForceLogin marks a user online on the admin's behalf.
func (u *UsersClient) ForceLogin(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, usersTimeout)
	defer cancel()

	var user models.User
	if err := u.base.do(ctx, http.MethodPost, "/users/"+id+"/force-login", nil, &user); err != nil {
		return nil, err
	}
	u.base.broadcast(models.EventUsersUpdated, map[string]string{"userId": id})
	return &user, nil
}

// Remove deletes a user account. Admin-only on the backend.
func (u *UsersClient) Remove(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, usersTimeout)
	defer cancel()

	if err := u.base.do(ctx, http.MethodDelete, "/users/"+id, nil, nil); err != nil {
		return err
	}
	u.base.broadcast(models.EventUsersUpdated, map[string]string{"userId": id})
	return nil
}
