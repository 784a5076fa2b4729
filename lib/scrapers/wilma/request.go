package wilma

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// request dispatches an authenticated call against the portal. paths
// are rewritten with the per-user prefix unless they already carry the
// prefix marker or hit a known unprefixed root. an expired session
// (detected by the portal silently redirecting to the login page) is
// renewed once and the request retried exactly once; a second expiry
// is surfaced as an APIError rather than looping.
func (c *Client) request(ctx context.Context, method, path string, form map[string]string) (*resty.Response, error) {
	ctx, span := tracer.Start(ctx, "client:request")
	defer span.End()
	span.SetAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
	)

	if err := c.ensureAuthenticated(ctx); err != nil {
		span.SetStatus(codes.Error, "failed to authenticate")
		return nil, err
	}

	res, err := c.do(ctx, method, c.prefixPath(path), form)
	if err != nil {
		span.SetStatus(codes.Error, "transport failure")
		return nil, &APIError{Path: path, Err: err}
	}
	if !redirectedToLogin(res) {
		return res, nil
	}

	span.AddEvent("session expired, renewing")
	c.invalidateSession()
	if err := c.Login(ctx); err != nil {
		span.SetStatus(codes.Error, "failed to renew session")
		return nil, err
	}

	res, err = c.do(ctx, method, c.prefixPath(path), form)
	if err != nil {
		span.SetStatus(codes.Error, "transport failure on retry")
		return nil, &APIError{Path: path, Err: err}
	}
	if redirectedToLogin(res) {
		span.SetStatus(codes.Error, "session expired twice")
		return nil, &APIError{Path: path, Err: fmt.Errorf("session expired again after renewal")}
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, method, path string, form map[string]string) (*resty.Response, error) {
	req := c.Http.R().SetContext(ctx)
	if form != nil {
		req.SetFormData(form)
	}
	return req.Execute(method, path)
}

// prepends the held user prefix unless the path already starts with
// the prefix marker or one of the portal's unprefixed roots.
func (c *Client) prefixPath(path string) string {
	if strings.HasPrefix(path, "/!") || strings.HasPrefix(path, "/preferences") {
		return path
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userPrefix + path
}

func redirectedToLogin(res *resty.Response) bool {
	return strings.Contains(strings.ToLower(finalURL(res)), "/login")
}

// the url the request ended up at after any redirects
func finalURL(res *resty.Response) string {
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		return res.RawResponse.Request.URL.String()
	}
	return res.Request.URL
}
