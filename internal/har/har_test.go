package har_test

import (
	"strings"
	"testing"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/har"
)

const sampleHAR = `{
  "log": {
    "version": "1.2",
    "entries": [
      {
        "startedDateTime": "2026-08-01T10:00:00.000Z",
        "request": {
          "method": "GET",
          "url": "https://shop.example.com/products?page=1",
          "headers": [
            {"name": "Accept", "value": "text/html"},
            {"name": "Cookie", "value": "session=abc"},
            {"name": "Connection", "value": "keep-alive"}
          ]
        }
      },
      {
        "startedDateTime": "2026-08-01T10:00:01.000Z",
        "request": {
          "method": "GET",
          "url": "https://shop.example.com/products?page=1",
          "headers": []
        }
      },
      {
        "startedDateTime": "2026-08-01T10:00:02.000Z",
        "request": {
          "method": "POST",
          "url": "https://shop.example.com/cart",
          "headers": []
        }
      },
      {
        "startedDateTime": "2026-08-01T10:00:03.000Z",
        "request": {
          "method": "GET",
          "url": "https://cdn.example.com/style.css",
          "headers": []
        }
      }
    ]
  }
}`

func TestParse(t *testing.T) {
	doc, err := har.Parse(strings.NewReader(sampleHAR))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Log.Version != "1.2" {
		t.Fatalf("version: got %q", doc.Log.Version)
	}
	if len(doc.Log.Entries) != 4 {
		t.Fatalf("entries: got %d", len(doc.Log.Entries))
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	for name, body := range map[string]string{
		"empty":       "",
		"not json":    "hello",
		"missing log": `{"notlog": {}}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := har.Parse(strings.NewReader(body)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestConvertDeduplicatesWithWeights(t *testing.T) {
	doc, err := har.Parse(strings.NewReader(sampleHAR))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	targets, err := har.Convert(doc, har.DefaultOptions())
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(targets) != 3 {
		t.Fatalf("expected 3 distinct targets, got %d: %+v", len(targets), targets)
	}

	first := targets[0]
	if first.Method != "GET" || first.Path != "/products?page=1" {
		t.Fatalf("first target: %+v", first)
	}
	if first.Weight != 2 {
		t.Fatalf("duplicate entries should stack weight, got %d", first.Weight)
	}
}

func TestConvertExtractsSafeHeaders(t *testing.T) {
	doc, err := har.Parse(strings.NewReader(sampleHAR))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	targets, err := har.Convert(doc, har.DefaultOptions())
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	headers := targets[0].Headers
	if headers["Accept"] != "text/html" {
		t.Fatalf("accept header should carry over, got %v", headers)
	}
	if _, ok := headers["Cookie"]; ok {
		t.Fatal("cookie headers must be dropped")
	}
	if _, ok := headers["Connection"]; ok {
		t.Fatal("hop-by-hop headers must be dropped")
	}
}

func TestConvertHostFilter(t *testing.T) {
	doc, err := har.Parse(strings.NewReader(sampleHAR))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	opts := har.ParseFilter("host:shop.example.com")
	targets, err := har.Convert(doc, opts)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	for _, target := range targets {
		if strings.Contains(target.Path, "style.css") {
			t.Fatalf("cdn entry should be filtered out: %+v", target)
		}
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets after host filter, got %d", len(targets))
	}
}

func TestConvertMethodFilter(t *testing.T) {
	doc, err := har.Parse(strings.NewReader(sampleHAR))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	opts := har.ParseFilter("method:POST")
	targets, err := har.Convert(doc, opts)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(targets) != 1 || targets[0].Method != "POST" || targets[0].Path != "/cart" {
		t.Fatalf("expected only the POST /cart target, got %+v", targets)
	}
}

func TestConvertNothingMatches(t *testing.T) {
	doc, err := har.Parse(strings.NewReader(sampleHAR))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := har.Convert(doc, har.ParseFilter("host:nowhere.example.com")); err == nil {
		t.Fatal("expected an error when no entries match")
	}
}

func TestParseFilterClauses(t *testing.T) {
	opts := har.ParseFilter("method:GET,POST;host:a.example.com, b.example.com;bogus:ignored")
	if len(opts.IncludeHosts) != 2 || opts.IncludeHosts[1] != "b.example.com" {
		t.Fatalf("hosts: %v", opts.IncludeHosts)
	}
	if len(opts.IncludeMethods) != 2 {
		t.Fatalf("methods: %v", opts.IncludeMethods)
	}
	if !opts.IncludeHeaders {
		t.Fatal("filters must not turn off header extraction")
	}
}
