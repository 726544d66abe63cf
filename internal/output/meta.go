package output

import (
	"time"
)

// injectMeta adds a _meta object to list-envelope responses.
// Only applies to map[string]interface{} carrying an "items" or "results"
// array (the shapes the API and raw passthrough answer for lists). Non-list
// data is returned unchanged.
func injectMeta(data interface{}) interface{} {
	m, ok := data.(map[string]interface{})
	if !ok {
		return data
	}

	var items []interface{}
	found := false
	for _, key := range listEnvelopeKeys {
		if v, ok := m[key]; ok {
			if arr, ok := v.([]interface{}); ok {
				items = arr
				found = true
				break
			}
		}
	}
	if !found {
		return data
	}

	meta := map[string]interface{}{
		"fetched_count": len(items),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}

	m["_meta"] = meta
	return m
}
