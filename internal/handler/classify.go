package handler

import "strings"

// geoBuckets mirrors the simulated geography tags used by the default
// classifier. Deterministic and offline: country follows from the byte
// sum of the client IP, not any external lookup.
var geoBuckets = []string{"IN", "US", "GB", "DE", "FR", "AU", "BR"}

// CountryFromIP is the default geography classifier.
func CountryFromIP(ip string) string {
	sum := 0
	for _, c := range ip {
		sum += int(c)
	}
	return geoBuckets[sum%len(geoBuckets)]
}

// DeviceFromUserAgent is the default device classifier.
func DeviceFromUserAgent(ua string) string {
	ua = strings.ToLower(ua)
	switch {
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "android"), strings.Contains(ua, "iphone"):
		return "mobile"
	case strings.Contains(ua, "tablet"), strings.Contains(ua, "ipad"):
		return "tablet"
	default:
		return "desktop"
	}
}
