// client/client.go
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"revview/internal/errors"
	"revview/internal/review"

	"go.uber.org/zap"
)

// xssiPrefix guards every JSON response of the review service.
const xssiPrefix = ")]}'"

type Client struct {
	baseURL    string
	httpClient *http.Client
	username   string
	password   string
	logger     *zap.Logger
}

type Option func(*Client)

// WithBasicAuth authenticates every request. Authenticated calls go through
// the service's /a/ prefix.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ review.API = (*Client)(nil)

func (c *Client) url(path string, query url.Values) string {
	prefix := ""
	if c.username != "" {
		prefix = "/a"
	}
	u := c.baseURL + prefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do sends the request and returns the body of a 2xx response. Failures are
// classified so callers can treat absence uniformly: 404 is NOT_FOUND,
// transport errors, auth failures and server errors are UNAVAILABLE.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("review request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return nil, errors.Unavailable("review service unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Unavailable("reading response", err)
	}

	c.logger.Debug("review request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NotFound(fmt.Sprintf("%s %s: not found", method, path))
	default:
		return nil, errors.Unavailable(fmt.Sprintf("unexpected status: %s", resp.Status), nil)
	}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return decode(data, out)
}

func decode(data []byte, out any) error {
	data = bytes.TrimPrefix(data, []byte(xssiPrefix))
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Unavailable("decoding response", err)
	}
	return nil
}

// Change fetches a change with its current revision, commit and files.
func (c *Client) Change(ctx context.Context, changeID string) (*review.ChangeInfo, error) {
	query := url.Values{}
	for _, o := range []string{"CURRENT_REVISION", "CURRENT_COMMIT", "CURRENT_FILES", "DETAILED_ACCOUNTS"} {
		query.Add("o", o)
	}

	var change review.ChangeInfo
	if err := c.getJSON(ctx, "/changes/"+url.PathEscape(changeID), query, &change); err != nil {
		return nil, err
	}
	return &change, nil
}

func (c *Client) CurrentCommit(ctx context.Context, changeID string) (*review.CommitInfo, error) {
	var commit review.CommitInfo
	path := fmt.Sprintf("/changes/%s/revisions/current/commit", url.PathEscape(changeID))
	if err := c.getJSON(ctx, path, nil, &commit); err != nil {
		return nil, err
	}
	return &commit, nil
}

// FileContent returns the raw bytes of a file at a commit. The service sends
// the content base64 encoded.
func (c *Client) FileContent(ctx context.Context, req review.FileRequest) ([]byte, error) {
	path := fmt.Sprintf("/projects/%s/commits/%s/files/%s/content",
		url.PathEscape(req.Project), url.PathEscape(req.Commit), url.PathEscape(req.FilePath))

	data, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	content, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(data)))
	if err != nil {
		return nil, errors.Unavailable("decoding file content", err)
	}
	return content, nil
}

func (c *Client) Comments(ctx context.Context, changeID string) (map[string][]review.CommentInfo, error) {
	var comments map[string][]review.CommentInfo
	path := fmt.Sprintf("/changes/%s/comments", url.PathEscape(changeID))
	if err := c.getJSON(ctx, path, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) DraftComments(ctx context.Context, changeID string) (map[string][]review.CommentInfo, error) {
	var drafts map[string][]review.CommentInfo
	path := fmt.Sprintf("/changes/%s/drafts", url.PathEscape(changeID))
	if err := c.getJSON(ctx, path, nil, &drafts); err != nil {
		return nil, err
	}
	return drafts, nil
}

func (c *Client) CreateDraftComment(ctx context.Context, changeID, revision string, in review.CommentInput) (*review.CommentInfo, error) {
	path := fmt.Sprintf("/changes/%s/revisions/%s/drafts", url.PathEscape(changeID), url.PathEscape(revision))
	data, err := c.do(ctx, http.MethodPut, path, nil, in)
	if err != nil {
		return nil, err
	}

	var created review.CommentInfo
	if err := decode(data, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Self resolves the authenticated user.
func (c *Client) Self(ctx context.Context) (*review.AccountInfo, error) {
	if c.username == "" {
		return nil, errors.Unauthorized("no credentials configured")
	}
	var self review.AccountInfo
	if err := c.getJSON(ctx, "/accounts/self", nil, &self); err != nil {
		return nil, err
	}
	return &self, nil
}
