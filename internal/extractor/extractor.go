// Package extractor pulls values out of snapshot JSON for `report --query`.
package extractor

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Query extracts the value at path from a JSON document. Both gjson syntax
// ("status_codes.200") and the JSONPath-style "$.status_codes.200" form are
// accepted; a bare "$" returns the whole document.
func Query(body []byte, path string) (string, error) {
	if len(path) > 0 && path[0] == '$' {
		if len(path) > 1 && path[1] == '.' {
			path = path[2:]
		} else if len(path) == 1 {
			path = "@this"
		}
	}

	result := gjson.GetBytes(body, path)
	if !result.Exists() {
		return "", fmt.Errorf("query path not found: %s", path)
	}
	return result.String(), nil
}
