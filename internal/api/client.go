// Package api is the JSON-over-HTTPS client for the authoritative
// backend. It owns no state beyond transport concerns: bearer tokens
// come from an injected supplier, timeouts from the injected
// http.Client, and outbound calls pass a rate limiter so a queue drain
// cannot burst-hammer the server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"tallysync/internal/types/challenge"
	"tallysync/internal/types/entry"
	"tallysync/internal/types/followed"
)

// TokenProvider supplies the current bearer token, or "" when the user
// is not signed in. Token acquisition belongs to the auth collaborator.
type TokenProvider func() string

type Client struct {
	baseURL string
	httpc   *http.Client
	token   TokenProvider
	limiter *rate.Limiter
}

func NewClient(baseURL string, token TokenProvider, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		httpc:   httpc,
		token:   token,
		limiter: rate.NewLimiter(10, 20),
	}
}

func (c *Client) ListChallenges(ctx context.Context, activeOnly bool) ([]challenge.Challenge, error) {
	q := url.Values{}
	if activeOnly {
		q.Set("activeOnly", "true")
	}
	var out []challenge.Challenge
	if err := c.do(ctx, http.MethodGet, "/challenges", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateChallenge(ctx context.Context, req *challenge.CreateRequest) (*challenge.Challenge, error) {
	var out challenge.Challenge
	if err := c.do(ctx, http.MethodPost, "/challenges", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateChallenge(ctx context.Context, id string, req *challenge.UpdateRequest) (*challenge.Challenge, error) {
	var out challenge.Challenge
	if err := c.do(ctx, http.MethodPatch, "/challenges/"+url.PathEscape(id), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteChallenge(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/challenges/"+url.PathEscape(id), nil, nil, nil)
}

// ListEntries fetches entries, optionally filtered by challenge and
// calendar day.
func (c *Client) ListEntries(ctx context.Context, challengeID, date string) ([]entry.Entry, error) {
	q := url.Values{}
	if challengeID != "" {
		q.Set("challengeId", challengeID)
	}
	if date != "" {
		q.Set("date", date)
	}
	var out []entry.Entry
	if err := c.do(ctx, http.MethodGet, "/entries", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateEntry(ctx context.Context, req *entry.CreateRequest) (*entry.Entry, error) {
	var out entry.Entry
	if err := c.do(ctx, http.MethodPost, "/entries", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/entries/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ListPublicChallenges(ctx context.Context) ([]followed.PublicChallenge, error) {
	var out []followed.PublicChallenge
	if err := c.do(ctx, http.MethodGet, "/public/challenges", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListFollowed(ctx context.Context) ([]followed.Followed, error) {
	var out []followed.Followed
	if err := c.do(ctx, http.MethodGet, "/followed", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Follow(ctx context.Context, challengeID string) (*followed.Followed, error) {
	var out followed.Followed
	req := followed.FollowRequest{ChallengeID: challengeID}
	if err := c.do(ctx, http.MethodPost, "/followed", nil, &req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Unfollow(ctx context.Context, followID string) error {
	return c.do(ctx, http.MethodDelete, "/followed/"+url.PathEscape(followID), nil, nil, nil)
}

// ExportSnapshot is the full remote dataset for backup/download.
type ExportSnapshot struct {
	ExportedAt time.Time             `json:"exportedAt"`
	Challenges []challenge.Challenge `json:"challenges"`
	Entries    []entry.Entry         `json:"entries"`
}

func (c *Client) Export(ctx context.Context) (*ExportSnapshot, error) {
	var out ExportSnapshot
	if err := c.do(ctx, http.MethodPost, "/export", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	token := c.token()
	if token == "" {
		return ErrNoToken
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &Error{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func errorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	if len(raw) > 0 {
		return strconv.Quote(string(raw))
	}
	return ""
}
