// Package dedup suppresses repeat publications across scheduler
// invocations. Two independent layers: a time cooldown keyed on the
// recorded last-published timestamp per language, and a content hash
// comparing the rendered text against the previous cycle's.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"macropulse/internal/domain"
)

// Filter drops matches whose language published within the cooldown. The
// cooldown must sit strictly between the trigger jitter and the minimum
// inter-slot spacing of any language, otherwise either duplicates slip
// through or legitimate slots get suppressed.
type Filter struct {
	cooldown time.Duration
	logger   *slog.Logger
}

func NewFilter(cooldown time.Duration, logger *slog.Logger) *Filter {
	return &Filter{
		cooldown: cooldown,
		logger:   logger.With("component", "dedup"),
	}
}

// Apply partitions matches into valid and cooldown-skipped. Forced matches
// bypass the cooldown.
func (f *Filter) Apply(matches []domain.SlotMatch, history map[string]time.Time, now time.Time) (valid, skipped []domain.SlotMatch) {
	for _, match := range matches {
		if match.Forced {
			valid = append(valid, match)
			continue
		}

		last, ok := history[match.Language]
		if ok && now.Sub(last) < f.cooldown {
			f.logger.Info("skipping recently published language",
				"language", match.Language,
				"phase", match.Phase,
				"last_published_at", last,
				"cooldown", f.cooldown,
			)
			skipped = append(skipped, match)
			continue
		}

		valid = append(valid, match)
	}
	return valid, skipped
}

// ContentHash returns a stable hash of rendered post text, used to detect
// cycles where the upstream data produced an identical post.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
