package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rubiojr/quill/pkg/models"
)

func (c *Client) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var out models.Profile
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, u models.ProfileUpdate) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodPut, "/users/me", nil, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	var out []models.User
	if err := c.do(ctx, http.MethodGet, "/users", url.Values{"search": {query}}, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Follow(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/follow", nil, nil, nil)
}

func (c *Client) Unfollow(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(userID)+"/follow", nil, nil, nil)
}

func (c *Client) Followers(ctx context.Context, userID string) ([]models.User, error) {
	var out []models.User
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/followers", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Following(ctx context.Context, userID string) ([]models.User, error) {
	var out []models.User
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/following", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
