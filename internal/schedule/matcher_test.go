package schedule

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macropulse/internal/domain"
)

func testMatcher(t *testing.T, table Table) *Matcher {
	t.Helper()
	require.NoError(t, table.Validate())
	return NewMatcher(table, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func jst(year int, month time.Month, day, hour, minute, sec int) time.Time {
	return time.Date(year, month, day, hour, minute, sec, 0, MarketZone)
}

func TestFindMatches_WithinLookback(t *testing.T) {
	// Scenario: EN has a morning and an evening phase; five minutes after
	// the first slot only phase 1 matches.
	m := testMatcher(t, Table{"EN": {{17, 0}, {22, 0}}})

	matches := m.FindMatches(jst(2024, 3, 15, 17, 5, 0), 10*time.Minute)

	assert.Equal(t, []domain.SlotMatch{{Language: "EN", Phase: 1}}, matches)
}

func TestFindMatches_WindowBoundaries(t *testing.T) {
	m := testMatcher(t, Table{"EN": {{17, 0}}})
	lookback := 55 * time.Minute

	// Slot exactly at now is included.
	assert.Len(t, m.FindMatches(jst(2024, 3, 15, 17, 0, 0), lookback), 1)

	// Slot exactly at now-lookback is excluded.
	assert.Empty(t, m.FindMatches(jst(2024, 3, 15, 17, 55, 0), lookback))

	// One second inside the window is included.
	assert.Len(t, m.FindMatches(jst(2024, 3, 15, 17, 54, 59), lookback), 1)
}

func TestFindMatches_MidnightWraparound(t *testing.T) {
	m := testMatcher(t, Table{"JA": {{23, 50}}})

	// Ten minutes past midnight the slot instant belongs to yesterday's
	// calendar date.
	matches := m.FindMatches(jst(2024, 3, 16, 0, 10, 0), 30*time.Minute)

	assert.Equal(t, []domain.SlotMatch{{Language: "JA", Phase: 1}}, matches)
}

func TestFindMatches_NothingScheduled(t *testing.T) {
	m := testMatcher(t, Table{"EN": {{17, 0}}})
	assert.Empty(t, m.FindMatches(jst(2024, 3, 15, 12, 0, 0), 55*time.Minute))
}

func TestFindMatches_MultipleLanguagesDeterministicOrder(t *testing.T) {
	m := testMatcher(t, Table{
		"FR": {{15, 30}},
		"DE": {{15, 0}},
	})

	matches := m.FindMatches(jst(2024, 3, 15, 15, 45, 0), 55*time.Minute)

	assert.Equal(t, []domain.SlotMatch{
		{Language: "DE", Phase: 1},
		{Language: "FR", Phase: 1},
	}, matches)
}

func TestCheckNow_SubsetOfFindMatches(t *testing.T) {
	m := testMatcher(t, Table{"EN": {{17, 0}}})

	now := jst(2024, 3, 15, 17, 5, 0)
	assert.Equal(t, m.FindMatches(now, 10*time.Minute), m.CheckNow(now, 10*time.Minute))

	// Outside the grace window but still inside a longer lookback.
	later := jst(2024, 3, 15, 17, 20, 0)
	assert.Empty(t, m.CheckNow(later, 10*time.Minute))
	assert.Len(t, m.FindMatches(later, 55*time.Minute), 1)
}

func TestForcedMatches_PriorityOrderAndPhases(t *testing.T) {
	matches := ForcedMatches([]string{"DE", "FR", "EN"})

	assert.Equal(t, []domain.SlotMatch{
		{Language: "DE", Phase: 1, Forced: true},
		{Language: "FR", Phase: 2, Forced: true},
		{Language: "EN", Phase: 3, Forced: true},
	}, matches)
}

func TestParseSlot(t *testing.T) {
	slot, err := ParseSlot("07:30")
	require.NoError(t, err)
	assert.Equal(t, Slot{Hour: 7, Minute: 30}, slot)
	assert.Equal(t, "07:30", slot.String())

	for _, raw := range []string{"", "7", "24:00", "12:60", "aa:bb", "-1:00"} {
		_, err := ParseSlot(raw)
		assert.Error(t, err, raw)
	}
}

func TestTableValidate(t *testing.T) {
	assert.Error(t, Table{}.Validate())
	assert.Error(t, Table{"EN": {}}.Validate())
	assert.Error(t, Table{"": {{1, 0}}}.Validate())
	assert.NoError(t, Table{"EN": {{17, 0}, {22, 0}}}.Validate())
}

func TestParseTable(t *testing.T) {
	table, err := ParseTable(map[string][]string{
		"EN": {"17:00", "22:00"},
		"JA": {"07:30"},
	})
	require.NoError(t, err)
	assert.Equal(t, []Slot{{17, 0}, {22, 0}}, table["EN"])
	assert.Equal(t, []string{"EN", "JA"}, table.Languages())

	_, err = ParseTable(map[string][]string{"EN": {"25:00"}})
	assert.Error(t, err)
}
