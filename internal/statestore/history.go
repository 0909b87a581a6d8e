package statestore

import "time"

// State document keys owned by the publication pipeline. Anything else in
// the document belongs to other collaborators and is round-tripped as-is.
const (
	KeyPublicationHistory = "publication_history"
	KeyContentHashes      = "content_hashes"
)

// History extracts the per-language last-published timestamps from a raw
// state document. Entries that fail to parse are dropped.
func History(state map[string]any) map[string]time.Time {
	history := make(map[string]time.Time)
	raw, ok := state[KeyPublicationHistory].(map[string]any)
	if !ok {
		return history
	}
	for lang, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			continue
		}
		history[lang] = t
	}
	return history
}

// ContentHashes extracts the per-language rendered-content hashes.
func ContentHashes(state map[string]any) map[string]string {
	hashes := make(map[string]string)
	raw, ok := state[KeyContentHashes].(map[string]any)
	if !ok {
		return hashes
	}
	for lang, v := range raw {
		if s, ok := v.(string); ok {
			hashes[lang] = s
		}
	}
	return hashes
}

// EncodeHistory converts timestamps back into the JSON-friendly shape
// stored under KeyPublicationHistory.
func EncodeHistory(history map[string]time.Time) map[string]any {
	raw := make(map[string]any, len(history))
	for lang, t := range history {
		raw[lang] = t.UTC().Format(time.RFC3339)
	}
	return raw
}

// EncodeHashes converts hashes into the stored shape.
func EncodeHashes(hashes map[string]string) map[string]any {
	raw := make(map[string]any, len(hashes))
	for lang, h := range hashes {
		raw[lang] = h
	}
	return raw
}
