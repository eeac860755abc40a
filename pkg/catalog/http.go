package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

// HTTPGateway talks to a REST catalog:
//
//	GET {base}/entities/{id}
//	GET {base}/entities/{id}/relationships?direction={upstream|downstream}&cursor={cursor}
//
// 404 maps to lineage.ErrNotFound; 429, 5xx and network failures are
// transient; other statuses are permanent.
type HTTPGateway struct {
	baseURL *url.URL
	client  *http.Client
	limiter *rate.Limiter
	headers http.Header
}

// HTTPOption configures an HTTPGateway.
type HTTPOption func(*HTTPGateway)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(g *HTTPGateway) {
		if c != nil {
			g.client = c
		}
	}
}

// WithRateLimit caps requests per second with the given burst.
func WithRateLimit(rps float64, burst int) HTTPOption {
	return func(g *HTTPGateway) {
		if rps > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) HTTPOption {
	return func(g *HTTPGateway) {
		g.headers.Add(key, value)
	}
}

// NewHTTPGateway creates a gateway for the catalog rooted at baseURL.
func NewHTTPGateway(baseURL string, opts ...HTTPOption) (*HTTPGateway, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid catalog URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid catalog URL %q: scheme must be http or https", baseURL)
	}

	g := &HTTPGateway{
		baseURL: u,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Inf, 1),
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

type entityPayload struct {
	ID          lineage.NodeID `json:"id"`
	TypeName    string         `json:"typeName"`
	DisplayName string         `json:"displayName"`
	Attributes  map[string]any `json:"attributes"`
}

type relationshipsPayload struct {
	Edges      []RawEdge `json:"edges"`
	NextCursor *string   `json:"nextCursor"`
}

// FetchEntity implements Gateway.
func (g *HTTPGateway) FetchEntity(ctx context.Context, id lineage.NodeID) (*lineage.Node, error) {
	endpoint := g.baseURL.JoinPath("entities", string(id))

	var payload entityPayload
	if err := g.getJSON(ctx, "FetchEntity", id, endpoint, &payload); err != nil {
		return nil, err
	}
	if payload.ID == "" {
		payload.ID = id
	}
	return &lineage.Node{
		ID:          payload.ID,
		TypeName:    payload.TypeName,
		DisplayName: payload.DisplayName,
		Attributes:  payload.Attributes,
	}, nil
}

// FetchRelationships implements Gateway.
func (g *HTTPGateway) FetchRelationships(ctx context.Context, id lineage.NodeID, dir lineage.Direction, cursor string) (*RelationshipPage, error) {
	if dir != lineage.Upstream && dir != lineage.Downstream {
		return nil, fmt.Errorf("FetchRelationships: unsupported direction %s", dir)
	}

	endpoint := g.baseURL.JoinPath("entities", string(id), "relationships")
	q := endpoint.Query()
	q.Set("direction", dir.String())
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint.RawQuery = q.Encode()

	var payload relationshipsPayload
	if err := g.getJSON(ctx, "FetchRelationships", id, endpoint, &payload); err != nil {
		return nil, err
	}

	page := &RelationshipPage{Edges: payload.Edges}
	if payload.NextCursor != nil {
		page.NextCursor = *payload.NextCursor
	}
	return page, nil
}

// Ping checks that the catalog answers at its base URL. Any status below 500
// counts as reachable.
func (g *HTTPGateway) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL.String(), nil)
	if err != nil {
		return err
	}
	for k, vs := range g.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("catalog unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return statusError(resp)
	}
	return nil
}

func (g *HTTPGateway) getJSON(ctx context.Context, op string, id lineage.NodeID, endpoint *url.URL, out any) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return lineage.NewError(op, id, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range g.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return lineage.NewError(op, id, Transient(err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return lineage.NewError(op, id, lineage.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return lineage.NewError(op, id, Transient(statusError(resp)))
	default:
		return lineage.NewError(op, id, statusError(resp))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return lineage.NewError(op, id, Transient(err))
		}
		return lineage.NewError(op, id, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("catalog returned %s", resp.Status)
	}
	return fmt.Errorf("catalog returned %s: %s", resp.Status, msg)
}
