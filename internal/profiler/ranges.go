package profiler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseRanges parses a comma-separated list of start-end tokens into an
// ordered, disjoint window sequence.
//
// Each token is parsed independently: a malformed token is dropped and
// reported in the returned warnings, the remaining tokens are kept. Windows
// are sorted by start; a window overlapping an earlier kept window is
// dropped with a warning.
func ParseRanges(s string) ([]Range, []string) {
	var ranges []Range
	var warnings []string

	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		start, end, err := parseRangeToken(token)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("invalid range %q: %v", token, err))
			continue
		}
		ranges = append(ranges, Range{Start: start, End: end})
	}

	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })

	// Drop windows overlapping the previous kept window.
	kept := ranges[:0]
	for _, r := range ranges {
		if len(kept) > 0 && r.Start < kept[len(kept)-1].End {
			warnings = append(warnings, fmt.Sprintf(
				"range %s overlaps %s, dropped", r, kept[len(kept)-1]))
			continue
		}
		kept = append(kept, r)
	}

	return kept, warnings
}

func parseRangeToken(token string) (uint64, uint64, error) {
	parts := strings.SplitN(token, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected start-end")
	}

	start, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad start: %w", err)
	}
	end, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad end: %w", err)
	}
	if start >= end {
		return 0, 0, fmt.Errorf("start %d must be below end %d", start, end)
	}

	return start, end, nil
}

// FormatRanges renders windows back into the comma-separated form accepted
// by ParseRanges.
func FormatRanges(ranges []Range) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// String renders the window as start-end.
func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Len returns the number of call indices inside the window.
func (r Range) Len() uint64 {
	return r.End - r.Start
}

// Contains reports whether the call index falls inside the window.
func (r Range) Contains(index uint64) bool {
	return index >= r.Start && index < r.End
}
