package har

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/feeder"
)

// ConvertOptions filter which entries become targets.
type ConvertOptions struct {
	// IncludeHosts limits conversion to these hosts (empty = all hosts).
	IncludeHosts []string
	// IncludeMethods limits conversion to these methods (empty = all).
	IncludeMethods []string
	// IncludeHeaders carries captured request headers onto the targets.
	IncludeHeaders bool
}

// DefaultOptions returns the converter defaults.
func DefaultOptions() ConvertOptions {
	return ConvertOptions{IncludeHeaders: true}
}

// ParseFilter parses a filter expression into ConvertOptions. Format:
// "host:a.example.com,b.example.com;method:GET,POST" — clause order is free
// and unknown clauses are ignored.
func ParseFilter(filter string) ConvertOptions {
	opts := DefaultOptions()
	for _, part := range strings.Split(filter, ";") {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		values := splitTrimmed(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "host":
			opts.IncludeHosts = values
		case "method":
			opts.IncludeMethods = values
		}
	}
	return opts
}

func splitTrimmed(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Convert turns HAR entries into load-test targets. Duplicate method+path
// pairs collapse into one target with a weight equal to the occurrence count,
// so the replayed mix matches the capture.
func Convert(doc *HAR, opts ConvertOptions) ([]feeder.Target, error) {
	if doc == nil || doc.Log == nil {
		return nil, fmt.Errorf("HAR is nil or has nil log")
	}

	type slot struct {
		target feeder.Target
	}
	seen := map[string]*slot{}
	var order []*slot

	for _, entry := range doc.Log.Entries {
		if entry == nil || entry.Request == nil {
			continue
		}
		req := entry.Request

		parsed, err := url.Parse(req.URL)
		if err != nil {
			continue
		}
		if !includeHost(parsed.Host, opts.IncludeHosts) {
			continue
		}
		if !includeMethod(req.Method, opts.IncludeMethods) {
			continue
		}

		path := parsed.Path
		if path == "" {
			path = "/"
		}
		if parsed.RawQuery != "" {
			path += "?" + parsed.RawQuery
		}
		method := strings.ToUpper(strings.TrimSpace(req.Method))

		key := method + " " + path
		if existing, ok := seen[key]; ok {
			existing.target.Weight++
			continue
		}

		target := feeder.Target{Path: path, Method: method, Weight: 1}
		if opts.IncludeHeaders && len(req.Headers) > 0 {
			target.Headers = extractHeaders(req.Headers)
		}
		s := &slot{target: target}
		seen[key] = s
		order = append(order, s)
	}

	if len(order) == 0 {
		return nil, fmt.Errorf("no HAR entries matched the filter")
	}

	targets := make([]feeder.Target, len(order))
	for i, s := range order {
		targets[i] = s.target
	}
	return targets, nil
}

func includeHost(host string, include []string) bool {
	if len(include) == 0 {
		return true
	}
	for _, h := range include {
		if strings.EqualFold(host, h) {
			return true
		}
	}
	return false
}

func includeMethod(method string, include []string) bool {
	if len(include) == 0 {
		return true
	}
	for _, m := range include {
		if strings.EqualFold(method, m) {
			return true
		}
	}
	return false
}

// extractHeaders copies captured headers, dropping hop-by-hop ones.
func extractHeaders(headers []*Header) map[string]string {
	hopByHop := map[string]bool{
		"connection":          true,
		"keep-alive":          true,
		"proxy-authenticate":  true,
		"proxy-authorization": true,
		"te":                  true,
		"trailers":            true,
		"transfer-encoding":   true,
		"upgrade":             true,
		"host":                true,
		"cookie":              true,
	}

	result := make(map[string]string)
	for _, header := range headers {
		if header == nil || hopByHop[strings.ToLower(header.Name)] {
			continue
		}
		result[header.Name] = header.Value
	}
	return result
}
