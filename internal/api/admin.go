package api

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"raharpa/internal/models"
)

const adminTimeout = 10 * time.Second

// AdminAPI is the request/response surface for the admin account resource.
type AdminAPI interface {
	Login(ctx context.Context, username, password string) (*models.Session, error)
	Profile(ctx context.Context, id string) (*models.AdminProfile, error)
	UpdateProfile(ctx context.Context, id string, profile models.AdminProfile) (*models.AdminProfile, error)
}

// AdminClient implements AdminAPI against the backend /admin endpoints.
type AdminClient struct {
	base *Client
}

var _ AdminAPI = (*AdminClient)(nil)

// NewAdminClient creates the admin resource client.
func NewAdminClient(base *Client) *AdminClient {
	return &AdminClient{base: base}
}

// Login authenticates an admin. When the backend hands out a JWT, its expiry
// claim is inspected so a token that is already dead is rejected up front
// instead of failing on the first authenticated call.
func (a *AdminClient) Login(ctx context.Context, username, password string) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, adminTimeout)
	defer cancel()

	var data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Name     string `json:"name"`
		Token    string `json:"token"`
	}
	payload := map[string]string{"username": username, "password": password}
	if err := a.base.do(ctx, http.MethodPost, "/admin/login", payload, &data); err != nil {
		return nil, err
	}

	if data.Token != "" {
		expiry, err := TokenExpiry(data.Token)
		if err == nil && !expiry.IsZero() && expiry.Before(time.Now()) {
			return nil, &Failure{Kind: KindValidation, Message: "session token already expired"}
		}
	}

	name := data.Name
	if name == "" {
		name = data.Username
	}
	return &models.Session{
		SubjectID:   data.ID,
		DisplayName: name,
		Role:        models.RoleAdmin,
		IssuedAt:    time.Now(),
		Token:       data.Token,
	}, nil
}

// Profile fetches the admin account record.
func (a *AdminClient) Profile(ctx context.Context, id string) (*models.AdminProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, adminTimeout)
	defer cancel()

	var profile models.AdminProfile
	if err := a.base.do(ctx, http.MethodGet, "/admin/profile/"+id, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile edits the admin account record.
func (a *AdminClient) UpdateProfile(ctx context.Context, id string, profile models.AdminProfile) (*models.AdminProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, adminTimeout)
	defer cancel()

	var updated models.AdminProfile
	if err := a.base.do(ctx, http.MethodPut, "/admin/profile/"+id, profile, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// TokenExpiry reads the expiry claim from a backend-issued JWT without
// verifying its signature; the backend remains the authority on validity,
// the client only uses the claim for local session bookkeeping.
func TokenExpiry(tokenStr string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}
