// Package httpclient builds the HTTP client and requests used by the load
// runner.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/feeder"
)

// RequestBuilder produces requests against a base URL, one per target.
type RequestBuilder struct {
	base    *url.URL
	headers http.Header
}

// NewRequestBuilder validates the base URL and shared headers once, up
// front, so per-request construction cannot fail on them later.
func NewRequestBuilder(baseURL string, headers map[string]string) (*RequestBuilder, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", base.Scheme)
	}

	shared, err := buildHeaders(headers)
	if err != nil {
		return nil, err
	}

	return &RequestBuilder{base: base, headers: shared}, nil
}

// Build constructs one request for target. The target's method defaults to
// GET and its path is resolved against the base URL.
func (b *RequestBuilder) Build(ctx context.Context, target feeder.Target) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.ToUpper(strings.TrimSpace(target.Method))
	if method == "" {
		method = http.MethodGet
	}

	path := target.Path
	if path == "" {
		path = "/"
	}
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse target path %q: %w", target.Path, err)
	}
	full := b.base.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, method, full.String(), nil)
	if err != nil {
		return nil, err
	}

	for key, values := range b.headers {
		for _, val := range values {
			req.Header.Add(key, val)
		}
	}
	if len(target.Headers) > 0 {
		extra, err := buildHeaders(target.Headers)
		if err != nil {
			return nil, err
		}
		for key, values := range extra {
			req.Header[key] = values
		}
	}

	return req, nil
}

func buildHeaders(raw map[string]string) (http.Header, error) {
	headers := http.Header{}
	for key, value := range raw {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", trimmedKey)
		}
		headers.Set(http.CanonicalHeaderKey(trimmedKey), value)
	}
	return headers, nil
}

// NewClient builds the shared HTTP client. The server under test closes
// every connection after one response, so keep-alives are disabled and each
// request dials fresh.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		DisableKeepAlives:   true,
		MaxIdleConns:        256,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
