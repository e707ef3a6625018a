package quality

import (
	"encoding/json"
	"sort"
	"strconv"
)

// SortedDiagnosticTypes returns the diagnostic type keys in a stable order.
func (c Check) SortedDiagnosticTypes() []string {
	return sortedKeys(c.Diagnostics)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toInt(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int:
		return int64(t)
	case int64:
		return t
	case json.Number:
		n, _ := t.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}
