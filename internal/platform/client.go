package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"batchbot/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const maxBodySize = 5 * 1024 * 1024

// Client talks to the platform's JSON API. It implements Feed, Actor
// and Inbox.
type Client struct {
	http      HTTPClient
	baseURL   string
	token     string
	userAgent string

	subreddits string
	pollDelay  time.Duration

	// queue holds listing items not yet handed to the consumer,
	// oldest first.
	queue     []model.Post
	lastFetch time.Time

	inboxQueue     []model.Message
	inboxLastFetch time.Time
}

// NewClient creates a Client for the given subreddits (joined with "+"
// in listing requests).
func NewClient(httpClient HTTPClient, baseURL, token, userAgent string, subreddits []string) *Client {
	return &Client{
		http:       httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		userAgent:  userAgent,
		subreddits: strings.Join(subreddits, "+"),
		pollDelay:  5 * time.Second,
	}
}

type thing struct {
	Data struct {
		ID         string  `json:"id"`
		Author     string  `json:"author"`
		CreatedUTC float64 `json:"created_utc"`
		SelfText   string  `json:"selftext"`
		Body       string  `json:"body"`
		IsSelf     bool    `json:"is_self"`
		Permalink  string  `json:"permalink"`
		Subject    string  `json:"subject"`
		WasComment bool    `json:"was_comment"`
	} `json:"data"`
}

type listing struct {
	Data struct {
		Children []thing `json:"children"`
	} `json:"data"`
}

// PollNext returns the next submission from the new-listing, or nil when
// nothing new is available yet. Listings are replayed oldest first; the
// consumer's dedup window and checkpoint absorb items seen before.
func (c *Client) PollNext(ctx context.Context) (*model.Post, error) {
	if len(c.queue) == 0 {
		if time.Since(c.lastFetch) < c.pollDelay {
			return nil, nil
		}
		if err := c.fetchListing(ctx); err != nil {
			return nil, err
		}
	}
	if len(c.queue) == 0 {
		return nil, nil
	}
	p := c.queue[0]
	c.queue = c.queue[1:]
	return &p, nil
}

func (c *Client) fetchListing(ctx context.Context) error {
	c.lastFetch = time.Now()

	var l listing
	path := fmt.Sprintf("/r/%s/new.json?limit=100", c.subreddits)
	if err := c.getJSON(ctx, path, &l); err != nil {
		return err
	}

	// Listings arrive newest first.
	for i := len(l.Data.Children) - 1; i >= 0; i-- {
		c.queue = append(c.queue, postFromThing(l.Data.Children[i]))
	}
	return nil
}

// Probe fetches a single listing item to test platform reachability.
func (c *Client) Probe(ctx context.Context) error {
	var l listing
	path := fmt.Sprintf("/r/%s/new.json?limit=1", c.subreddits)
	return c.getJSON(ctx, path, &l)
}

// Reply posts a comment under the target post.
func (c *Client) Reply(ctx context.Context, targetID, body string) (string, error) {
	form := url.Values{
		"thing_id": {"t3_" + targetID},
		"text":     {body},
	}
	var t thing
	if err := c.postForm(ctx, "/api/comment", form, &t); err != nil {
		return "", err
	}
	return t.Data.ID, nil
}

// EditReply replaces the body of an existing comment.
func (c *Client) EditReply(ctx context.Context, replyID, body string) error {
	form := url.Values{
		"thing_id": {"t1_" + replyID},
		"text":     {body},
	}
	return c.postForm(ctx, "/api/editusertext", form, nil)
}

// Delete removes a comment.
func (c *Client) Delete(ctx context.Context, replyID string) error {
	form := url.Values{"id": {"t1_" + replyID}}
	return c.postForm(ctx, "/api/del", form, nil)
}

// Fetch returns the current state of a post.
func (c *Client) Fetch(ctx context.Context, targetID string) (*model.Post, error) {
	var l listing
	if err := c.getJSON(ctx, "/by_id/t3_"+targetID+".json", &l); err != nil {
		return nil, err
	}
	if len(l.Data.Children) == 0 {
		return nil, &NotFoundError{ID: targetID}
	}
	p := postFromThing(l.Data.Children[0])
	return &p, nil
}

// FetchComment returns a single comment.
func (c *Client) FetchComment(ctx context.Context, commentID string) (*model.Comment, error) {
	var l listing
	if err := c.getJSON(ctx, "/api/info.json?id=t1_"+commentID, &l); err != nil {
		return nil, err
	}
	if len(l.Data.Children) == 0 {
		return nil, &NotFoundError{ID: commentID}
	}
	cm := commentFromThing(l.Data.Children[0])
	return &cm, nil
}

// HasReplyFrom reports whether user has a top-level comment on target.
func (c *Client) HasReplyFrom(ctx context.Context, targetID, user string) (bool, error) {
	comments, err := c.comments(ctx, "/comments/"+targetID+".json")
	if err != nil {
		return false, err
	}
	for _, cm := range comments {
		if cm.Author == user {
			return true, nil
		}
	}
	return false, nil
}

// RepliesTo lists comments made in response to the given comment.
func (c *Client) RepliesTo(ctx context.Context, commentID string) ([]model.Comment, error) {
	return c.comments(ctx, "/comments/comment/"+commentID+".json")
}

// PollNextMessage returns the next private message from the inbox, or
// nil when nothing new is available yet.
func (c *Client) PollNextMessage(ctx context.Context) (*model.Message, error) {
	if len(c.inboxQueue) == 0 {
		if time.Since(c.inboxLastFetch) < c.pollDelay {
			return nil, nil
		}
		c.inboxLastFetch = time.Now()

		var l listing
		if err := c.getJSON(ctx, "/message/inbox.json?limit=100", &l); err != nil {
			return nil, err
		}
		for i := len(l.Data.Children) - 1; i >= 0; i-- {
			t := l.Data.Children[i]
			c.inboxQueue = append(c.inboxQueue, model.Message{
				ID:         t.Data.ID,
				Author:     t.Data.Author,
				Subject:    t.Data.Subject,
				CreatedUTC: int64(t.Data.CreatedUTC),
				WasComment: t.Data.WasComment,
			})
		}
	}
	if len(c.inboxQueue) == 0 {
		return nil, nil
	}
	m := c.inboxQueue[0]
	c.inboxQueue = c.inboxQueue[1:]
	return &m, nil
}

func (c *Client) comments(ctx context.Context, path string) ([]model.Comment, error) {
	var l listing
	if err := c.getJSON(ctx, path, &l); err != nil {
		return nil, err
	}
	out := make([]model.Comment, 0, len(l.Data.Children))
	for _, t := range l.Data.Children {
		out = append(out, commentFromThing(t))
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, dst)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, dst)
}

func (c *Client) do(req *http.Request, dst any) error {
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{Message: resp.Status}
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{ID: req.URL.Path}
	case resp.StatusCode >= 500:
		return &ResponseError{StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if dst == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &RequestError{Err: err}
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func postFromThing(t thing) model.Post {
	return model.Post{
		ID:         t.Data.ID,
		Author:     t.Data.Author,
		CreatedUTC: int64(t.Data.CreatedUTC),
		Body:       t.Data.SelfText,
		IsSelf:     t.Data.IsSelf,
		Permalink:  t.Data.Permalink,
	}
}

func commentFromThing(t thing) model.Comment {
	return model.Comment{
		ID:     t.Data.ID,
		Author: t.Data.Author,
		Body:   t.Data.Body,
	}
}
