// ABOUTME: HTTP implementation of the CRM store using bearer-token auth
// ABOUTME: Also delivers raw queued mutations and probes API reachability
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/harperreed/touchpoint/models"
	"github.com/harperreed/touchpoint/queue"
)

const defaultTimeout = 15 * time.Second

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("server returned %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("server returned %d %s", e.Code, http.StatusText(e.Code))
}

func (e *StatusError) StatusCode() int {
	return e.Code
}

// Client talks to the CRM HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

// NewClient builds a client for baseURL. A non-empty token is attached as a
// bearer token on every request.
func NewClient(baseURL, token string, logger *log.Logger) *Client {
	base := &http.Client{Timeout: defaultTimeout}
	httpClient := base
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
			TokenType:   "Bearer",
		}))
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger.WithPrefix("remote"),
	}
}

func (c *Client) List(ctx context.Context, q models.ListQuery) (models.Page, error) {
	q = q.Normalized()
	params := url.Values{}
	if q.Search != "" {
		params.Set("q", q.Search)
	}
	if q.Type != "" {
		params.Set("type", string(q.Type))
	}
	if q.Status != "" {
		params.Set("status", string(q.Status))
	}
	if q.OrganizationID != "" {
		params.Set("organization_id", q.OrganizationID)
	}
	params.Set("sort", string(q.SortColumn))
	if q.SortDesc {
		params.Set("desc", "true")
	}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("page_size", strconv.Itoa(q.PageSize))

	var page models.Page
	if err := c.do(ctx, http.MethodGet, interactionsPath+"?"+params.Encode(), nil, &page); err != nil {
		return models.Page{}, fmt.Errorf("failed to list interactions: %w", err)
	}
	return page, nil
}

func (c *Client) Get(ctx context.Context, id uuid.UUID) (*models.Interaction, error) {
	var in models.Interaction
	err := c.do(ctx, http.MethodGet, interactionsPath+"/"+id.String(), nil, &in)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction: %w", err)
	}
	return &in, nil
}

func (c *Client) Create(ctx context.Context, in models.Interaction) (uuid.UUID, error) {
	var resp struct {
		ID uuid.UUID `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, interactionsPath, in, &resp); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create interaction: %w", err)
	}
	return resp.ID, nil
}

func (c *Client) Update(ctx context.Context, id uuid.UUID, in models.Interaction) error {
	in.ID = id
	if err := c.do(ctx, http.MethodPatch, interactionsPath+"/"+id.String(), in, nil); err != nil {
		return fmt.Errorf("failed to update interaction: %w", err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.do(ctx, http.MethodDelete, interactionsPath+"/"+id.String(), nil, nil); err != nil {
		return fmt.Errorf("failed to delete interaction: %w", err)
	}
	return nil
}

func (c *Client) DeleteMany(ctx context.Context, ids []uuid.UUID) (int, error) {
	var resp struct {
		Deleted int `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodPost, bulkDeletePath, bulkDeleteRequest{IDs: ids}, &resp); err != nil {
		return 0, fmt.Errorf("failed to delete interactions: %w", err)
	}
	return resp.Deleted, nil
}

func (c *Client) KPIs(ctx context.Context, f models.KPIFilter) (models.KPIs, error) {
	params := url.Values{}
	if f.Since != nil {
		params.Set("since", f.Since.UTC().Format(time.RFC3339))
	}
	if f.OrganizationID != "" {
		params.Set("organization_id", f.OrganizationID)
	}
	path := "/kpis"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var k models.KPIs
	if err := c.do(ctx, http.MethodGet, path, nil, &k); err != nil {
		return models.KPIs{}, fmt.Errorf("failed to load kpis: %w", err)
	}
	return k, nil
}

func (c *Client) Search(ctx context.Context, kind models.CandidateKind, query string, limit int) ([]models.Candidate, error) {
	params := url.Values{}
	params.Set("q", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var candidates []models.Candidate
	if err := c.do(ctx, http.MethodGet, "/lookup/"+string(kind)+"?"+params.Encode(), nil, &candidates); err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", kind, err)
	}
	return candidates, nil
}

type createCandidateRequest struct {
	Name   string `json:"name"`
	Parent string `json:"parent_id,omitempty"`
}

// CreateCandidate creates a related entity inline from a lookup. parent is
// the organization id for contacts and opportunities.
func (c *Client) CreateCandidate(ctx context.Context, kind models.CandidateKind, name, parent string) (models.Candidate, error) {
	var created models.Candidate
	req := createCandidateRequest{Name: name, Parent: parent}
	if err := c.do(ctx, http.MethodPost, "/lookup/"+string(kind), req, &created); err != nil {
		return models.Candidate{}, fmt.Errorf("failed to create %s: %w", kind, err)
	}
	if created.Kind == "" {
		created.Kind = kind
	}
	return created, nil
}

// Send delivers a queued mutation verbatim.
func (c *Client) Send(ctx context.Context, m queue.Mutation) error {
	var body io.Reader
	if len(m.Payload) > 0 {
		body = bytes.NewReader(m.Payload)
	}
	req, err := http.NewRequestWithContext(ctx, m.Method, c.baseURL+m.Target, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range m.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Idempotency-Key", m.ID)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return checkStatus(resp)
}

// Ping reports whether the API answers at all. Any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "err", err)
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	c.logger.Debug("request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
}
