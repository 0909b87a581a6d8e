package statestore

// mergeState layers updates over the existing document. Keys listed in
// protected are owned by other collaborators: when the original document
// has a value for such a key and the merged result would drop or blank it,
// the original value is restored.
func mergeState(existing, updates map[string]any, protected []string) map[string]any {
	merged := make(map[string]any, len(existing)+len(updates))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}

	for _, key := range protected {
		orig, ok := existing[key]
		if !ok {
			continue
		}
		if isFalsy(merged[key]) {
			merged[key] = orig
		}
	}

	return merged
}

func isFalsy(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	case float64:
		return val == 0
	case int:
		return val == 0
	case int64:
		return val == 0
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	default:
		return false
	}
}
