// Package client talks to a youbuidld node over HTTP and websocket. It
// implements the RemoteStore, Feed and Identity ports of the interactions
// package.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	youbuidl "github.com/givestation/youbuidl-sync"
	"github.com/givestation/youbuidl-sync/interactions"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	base   string
	client *http.Client
	signer Signer
	cache  *cache.Cache
}

// New constructs a client for the API at base (e.g. "https://api.youbuidl.xyz").
// signer may be nil for read-only, unauthenticated use.
func New(base string, signer Signer) *Client {
	return &Client{
		base:   base,
		client: &http.Client{Timeout: defaultTimeout},
		signer: signer,
		cache:  cache.New(30*time.Second, time.Minute),
	}
}

// Address implements interactions.Identity. Empty means unauthenticated.
func (c *Client) Address() string {
	if c.signer == nil {
		return ""
	}
	return c.signer.Address()
}

func (c *Client) authToken() (string, error) {
	if c.signer == nil {
		return "", nil
	}
	ts := time.Now().Unix()
	sig, err := c.signer.Sign(youbuidl.AuthMessage(ts))
	if err != nil {
		return "", fmt.Errorf("failed to sign auth challenge: %v", err)
	}
	return fmt.Sprintf("%s:%d:0x%x", c.signer.Address(), ts, sig), nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := c.authToken()
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var er errorResponse
		if json.NewDecoder(resp.Body).Decode(&er) == nil && er.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, er.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: unexpected status code: %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %v", err)
		}
	}
	return nil
}

func (c *Client) ListComments(ctx context.Context, entityID string) ([]youbuidl.Comment, error) {
	var comments []youbuidl.Comment
	err := c.do(ctx, http.MethodGet, "/api/v1/comments?entity="+entityID, nil, &comments)
	if err != nil {
		return nil, err
	}
	return comments, nil
}

type createCommentRequest struct {
	EntityID string `json:"entityId"`
	ParentID string `json:"parentId,omitempty"`
	Content  string `json:"content"`
}

func (c *Client) CreateComment(ctx context.Context, entityID, parentID, content string) (youbuidl.Comment, error) {
	var created youbuidl.Comment
	err := c.do(ctx, http.MethodPost, "/api/v1/comments", createCommentRequest{
		EntityID: entityID,
		ParentID: parentID,
		Content:  content,
	}, &created)
	if err != nil {
		return youbuidl.Comment{}, err
	}
	return created, nil
}

type likeCountResponse struct {
	LikeCount int `json:"likeCount"`
}

func (c *Client) LikeComment(ctx context.Context, commentID string) (int, error) {
	var res likeCountResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/comments/"+commentID+"/like", nil, &res)
	if err != nil {
		return 0, err
	}
	c.cache.Flush()
	return res.LikeCount, nil
}

func (c *Client) UnlikeComment(ctx context.Context, commentID string) (int, error) {
	var res likeCountResponse
	err := c.do(ctx, http.MethodDelete, "/api/v1/comments/"+commentID+"/like", nil, &res)
	if err != nil {
		return 0, err
	}
	c.cache.Flush()
	return res.LikeCount, nil
}

type likedIDsResponse struct {
	IDs []string `json:"ids"`
}

func (c *Client) LikedCommentIDs(ctx context.Context, entityID string) ([]string, error) {
	cacheKey := "liked:" + entityID
	if x, found := c.cache.Get(cacheKey); found {
		return x.([]string), nil
	}

	var res likedIDsResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/comments/liked?entity="+entityID, nil, &res)
	if err != nil {
		return nil, err
	}
	c.cache.Set(cacheKey, res.IDs, cache.DefaultExpiration)
	return res.IDs, nil
}

// UpvoteState is deliberately not cached: the reconciler re-queries it as the
// authoritative recount after every upvote feed event.
func (c *Client) UpvoteState(ctx context.Context, entityID string) (youbuidl.UpvoteState, error) {
	var state youbuidl.UpvoteState
	err := c.do(ctx, http.MethodGet, "/api/v1/upvotes/"+entityID, nil, &state)
	if err != nil {
		return youbuidl.UpvoteState{}, err
	}
	return state, nil
}

func (c *Client) Upvote(ctx context.Context, entityID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/upvotes/"+entityID, nil, nil)
}

func (c *Client) RemoveUpvote(ctx context.Context, entityID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/upvotes/"+entityID, nil, nil)
}

var _ interactions.RemoteStore = (*Client)(nil)
var _ interactions.Identity = (*Client)(nil)
