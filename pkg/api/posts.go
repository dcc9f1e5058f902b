package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rubiojr/quill/pkg/models"
)

type PostQuery struct {
	Search   string
	Tag      string
	AuthorID string
	Page     int
	Limit    int
}

func (q PostQuery) values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Tag != "" {
		v.Set("tag", q.Tag)
	}
	if q.AuthorID != "" {
		v.Set("authorId", q.AuthorID)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

type PostPage struct {
	Posts      []models.Post `json:"posts"`
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
}

func (c *Client) ListPosts(ctx context.Context, q PostQuery) (*PostPage, error) {
	var out PostPage
	if err := c.do(ctx, http.MethodGet, "/posts", q.values(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Feed lists posts from the users the caller follows.
func (c *Client) Feed(ctx context.Context, page int) (*PostPage, error) {
	var out PostPage
	if err := c.do(ctx, http.MethodGet, "/posts/feed", PostQuery{Page: page}.values(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var out models.Post
	if err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePost(ctx context.Context, p models.NewPost) (*models.Post, error) {
	var out models.Post
	if err := c.do(ctx, http.MethodPost, "/posts", nil, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePost(ctx context.Context, id string, p models.NewPost) (*models.Post, error) {
	var out models.Post
	if err := c.do(ctx, http.MethodPut, "/posts/"+url.PathEscape(id), nil, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(id), nil, nil, nil)
}
