package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MarketZone is the canonical timezone for every slot in the table. The
// reference market opens on Tokyo time; a fixed UTC+9 offset is applied
// deliberately, with no DST adjustment and no tzdata lookup.
var MarketZone = time.FixedZone("JST", 9*60*60)

// Slot is a local time-of-day publication opportunity in MarketZone.
type Slot struct {
	Hour   int
	Minute int
}

func (s Slot) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// ParseSlot parses an "HH:MM" string.
func ParseSlot(raw string) (Slot, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return Slot{}, fmt.Errorf("invalid slot %q: want HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return Slot{}, fmt.Errorf("invalid slot %q: %w", raw, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return Slot{}, fmt.Errorf("invalid slot %q: %w", raw, err)
	}
	slot := Slot{Hour: hour, Minute: minute}
	if err := slot.validate(); err != nil {
		return Slot{}, fmt.Errorf("invalid slot %q: %w", raw, err)
	}
	return slot, nil
}

func (s Slot) validate() error {
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("hour %d out of range", s.Hour)
	}
	if s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("minute %d out of range", s.Minute)
	}
	return nil
}

// Table maps a language to its ordered daily slots. Slot order defines the
// 1-based phase numbering; multiple slots per language are semantically
// distinct phases (morning open, evening close).
type Table map[string][]Slot

// ParseTable builds a Table from the raw config shape.
func ParseTable(raw map[string][]string) (Table, error) {
	table := make(Table, len(raw))
	for lang, slots := range raw {
		parsed := make([]Slot, 0, len(slots))
		for _, s := range slots {
			slot, err := ParseSlot(s)
			if err != nil {
				return nil, fmt.Errorf("language %s: %w", lang, err)
			}
			parsed = append(parsed, slot)
		}
		table[lang] = parsed
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Validate rejects empty tables and languages without slots.
func (t Table) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("schedule table is empty")
	}
	for lang, slots := range t {
		if lang == "" {
			return fmt.Errorf("schedule table has an empty language code")
		}
		if len(slots) == 0 {
			return fmt.Errorf("language %s has no slots", lang)
		}
		for _, slot := range slots {
			if err := slot.validate(); err != nil {
				return fmt.Errorf("language %s: %w", lang, err)
			}
		}
	}
	return nil
}

// Languages returns the table's language codes in sorted order, so that
// evaluations produce deterministic match lists.
func (t Table) Languages() []string {
	langs := make([]string, 0, len(t))
	for lang := range t {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
