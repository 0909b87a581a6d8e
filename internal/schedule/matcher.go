package schedule

import (
	"log/slog"
	"time"

	"macropulse/internal/domain"
)

// Matcher resolves which slots fall inside a trailing lookback window.
// The external trigger fires on an approximate cadence, so instead of
// exact-minute checks every evaluation scans (now-lookback, now]: as long
// as the lookback covers the trigger interval, every slot is caught at
// least once, and the dedup filter suppresses the second catch.
type Matcher struct {
	table  Table
	logger *slog.Logger
}

func NewMatcher(table Table, logger *slog.Logger) *Matcher {
	return &Matcher{
		table:  table,
		logger: logger.With("component", "matcher"),
	}
}

// FindMatches returns every (language, phase) whose scheduled instant lies
// in the half-open window (now-lookback, now]. A slot exactly at the
// window start belongs to the previous evaluation; a slot exactly at now
// belongs to this one.
func (m *Matcher) FindMatches(now time.Time, lookback time.Duration) []domain.SlotMatch {
	return m.findWithin(now, lookback, []int{-1, 0, 1})
}

// CheckNow is the tight-tolerance special case of FindMatches for callers
// that can guarantee near-exact invocation: only slots whose minute just
// passed within the grace window match. For grace <= lookback its result
// is always a subset of FindMatches at the same instant.
func (m *Matcher) CheckNow(now time.Time, grace time.Duration) []domain.SlotMatch {
	return m.findWithin(now, grace, []int{-1, 0})
}

func (m *Matcher) findWithin(now time.Time, window time.Duration, dayOffsets []int) []domain.SlotMatch {
	windowStart := now.Add(-window)
	local := now.In(MarketZone)

	var matches []domain.SlotMatch
	seen := make(map[domain.SlotMatch]bool)

	for _, lang := range m.table.Languages() {
		for i, slot := range m.table[lang] {
			for _, offset := range dayOffsets {
				// The slot instant near midnight may belong to
				// yesterday's or tomorrow's calendar date relative
				// to now, so all nearby dates are tried.
				candidate := time.Date(
					local.Year(), local.Month(), local.Day()+offset,
					slot.Hour, slot.Minute, 0, 0, MarketZone,
				)
				if !candidate.After(windowStart) || candidate.After(now) {
					continue
				}

				match := domain.SlotMatch{Language: lang, Phase: i + 1}
				if seen[match] {
					continue
				}
				seen[match] = true
				matches = append(matches, match)

				m.logger.Debug("slot matched",
					"language", lang,
					"phase", i+1,
					"slot", slot.String(),
					"scheduled_at", candidate,
				)
			}
		}
	}

	return matches
}

// ForcedMatches builds the match set for force mode: one forced match per
// priority language, phase numbering following list order, schedule and
// window ignored.
func ForcedMatches(languages []string) []domain.SlotMatch {
	matches := make([]domain.SlotMatch, 0, len(languages))
	for i, lang := range languages {
		matches = append(matches, domain.SlotMatch{Language: lang, Phase: i + 1, Forced: true})
	}
	return matches
}
