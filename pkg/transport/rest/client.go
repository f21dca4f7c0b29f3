// Package rest adapts the engagement service boundary onto a JSON/HTTP API.
// Every call is wrapped in an OpenTelemetry span carrying the operation,
// entity id, and outcome.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tessera-dev/tessera/pkg/feed"
	"github.com/tessera-dev/tessera/pkg/readmark"
	"github.com/tessera-dev/tessera/pkg/toggle"
)

// Default tracer name for the REST transport.
const defaultTracerName = "tessera/transport/rest"

// Client speaks the engagement API over HTTP. It implements both
// toggle.Service and readmark.Service.
type Client struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
}

var (
	_ toggle.Service   = (*Client)(nil)
	_ readmark.Service = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTracer sets the tracer used for call spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) { c.tracer = tracer }
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tracer:  otel.Tracer(defaultTracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Activate turns the toggle on for entityID.
func (c *Client) Activate(ctx context.Context, entityID string) (toggle.Status, error) {
	return c.toggleCall(ctx, "activate", entityID)
}

// Deactivate turns the toggle off for entityID.
func (c *Client) Deactivate(ctx context.Context, entityID string) (toggle.Status, error) {
	return c.toggleCall(ctx, "deactivate", entityID)
}

// Status fetches the authoritative toggle state for entityID.
func (c *Client) Status(ctx context.Context, entityID string) (toggle.Status, error) {
	var st toggle.Status
	err := c.call(ctx, "status", http.MethodGet,
		"/v1/entities/"+entityID+"/status", nil, &st,
		attribute.String("entity.id", entityID))
	return st, err
}

func (c *Client) toggleCall(ctx context.Context, op, entityID string) (toggle.Status, error) {
	var st toggle.Status
	err := c.call(ctx, op, http.MethodPost,
		"/v1/entities/"+entityID+"/"+op, nil, &st,
		attribute.String("entity.id", entityID))
	return st, err
}

type readMarkRequest struct {
	ItemIDs []string `json:"item_ids"`
}

type readMarkResponse struct {
	MarkedCount int `json:"marked_count"`
}

// MarkRead reports itemIDs as read and returns how many the backend marked.
func (c *Client) MarkRead(ctx context.Context, itemIDs []string) (int, error) {
	var resp readMarkResponse
	err := c.call(ctx, "mark_read", http.MethodPost,
		"/v1/read-marks", readMarkRequest{ItemIDs: itemIDs}, &resp,
		attribute.Int("items.count", len(itemIDs)))
	if err != nil {
		return 0, err
	}
	return resp.MarkedCount, nil
}

// FeedPage fetches one page of the feed, already arranged by the server.
func (c *Client) FeedPage(ctx context.Context, cursor string, gridWidth int) (feed.Page, error) {
	path := "/v1/feed?width=" + strconv.Itoa(gridWidth)
	if cursor != "" {
		path += "&cursor=" + cursor
	}

	var page feed.Page
	err := c.call(ctx, "feed", http.MethodGet, path, nil, &page,
		attribute.Int("feed.width", gridWidth))
	return page, err
}

// call performs one traced JSON round trip.
func (c *Client) call(ctx context.Context, op, method, path string, body, out any, attrs ...attribute.KeyValue) error {
	ctx, span := c.tracer.Start(ctx, "engagement."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))
	defer span.End()

	err := c.doJSON(ctx, method, path, body, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("rest: encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("rest: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rest: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("rest: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("rest: decode response: %w", err)
	}
	return nil
}
