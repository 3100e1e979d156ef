package handler_test

import (
	"testing"

	"github.com/hiteshkr25/Mutli-Threaded-Web-Server/internal/handler"
)

func TestCountryFromIPIsDeterministic(t *testing.T) {
	a := handler.CountryFromIP("10.0.0.1")
	b := handler.CountryFromIP("10.0.0.1")
	if a != b {
		t.Fatalf("same IP should classify the same: %q vs %q", a, b)
	}
	if a == "" {
		t.Fatal("expected a country tag")
	}
}

func TestDeviceFromUserAgent(t *testing.T) {
	cases := map[string]string{
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)":       "mobile",
		"Mozilla/5.0 (Linux; Android 14; Pixel 8)":       "mobile",
		"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)":  "tablet",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64)":      "desktop",
		"": "desktop",
	}
	for ua, want := range cases {
		if got := handler.DeviceFromUserAgent(ua); got != want {
			t.Errorf("DeviceFromUserAgent(%q) = %q, want %q", ua, got, want)
		}
	}
}
