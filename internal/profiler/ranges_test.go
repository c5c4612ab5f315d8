package profiler

import (
	"testing"
)

func TestParseRanges_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  []Range
	}{
		{"100-150", []Range{{100, 150}}},
		{"50-100,200-300", []Range{{50, 100}, {200, 300}}},
		{"0-50,100-150,300-350", []Range{{0, 50}, {100, 150}, {300, 350}}},
		{" 10-20 , 30-40 ", []Range{{10, 20}, {30, 40}}},
		{"200-300,50-100", []Range{{50, 100}, {200, 300}}}, // sorted by start
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, warnings := ParseRanges(tt.input)
			if len(warnings) != 0 {
				t.Errorf("unexpected warnings: %v", warnings)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseRanges(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("range %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseRanges_MalformedTokenDroppedRestKept(t *testing.T) {
	tests := []struct {
		input     string
		wantKept  int
		wantWarns int
	}{
		{"50-100,banana,200-300", 2, 1},
		{"50-100,100-50", 1, 1},  // start >= end
		{"50-100,300-300", 1, 1}, // empty window
		{"nope", 0, 1},
		{"50-100,12", 1, 1}, // missing dash
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, warnings := ParseRanges(tt.input)
			if len(got) != tt.wantKept {
				t.Errorf("kept %d ranges, want %d (got %v)", len(got), tt.wantKept, got)
			}
			if len(warnings) != tt.wantWarns {
				t.Errorf("got %d warnings, want %d (%v)", len(warnings), tt.wantWarns, warnings)
			}
		})
	}
}

func TestParseRanges_OverlapDropped(t *testing.T) {
	got, warnings := ParseRanges("50-100,80-120,200-300")

	want := []Range{{50, 100}, {200, 300}}
	if len(got) != len(want) {
		t.Fatalf("ParseRanges = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("range %d = %v, want %v", i, got[i], want[i])
		}
	}
	if len(warnings) != 1 {
		t.Errorf("got %d warnings, want 1", len(warnings))
	}
}

func TestFormatRanges_RoundTrip(t *testing.T) {
	inputs := []string{
		"100-150",
		"50-100,200-300",
		"0-50,100-150,300-350",
	}

	for _, input := range inputs {
		parsed, warnings := ParseRanges(input)
		if len(warnings) != 0 {
			t.Fatalf("unexpected warnings for %q: %v", input, warnings)
		}

		formatted := FormatRanges(parsed)
		if formatted != input {
			t.Errorf("FormatRanges(ParseRanges(%q)) = %q", input, formatted)
		}

		reparsed, _ := ParseRanges(formatted)
		if len(reparsed) != len(parsed) {
			t.Errorf("re-parse of %q lost ranges", formatted)
		}
	}
}

func TestRange_Contains(t *testing.T) {
	r := Range{Start: 50, End: 100}

	// Half-open: start inclusive, end exclusive.
	if r.Contains(49) {
		t.Error("49 should be outside 50-100")
	}
	if !r.Contains(50) {
		t.Error("50 should be inside 50-100")
	}
	if !r.Contains(99) {
		t.Error("99 should be inside 50-100")
	}
	if r.Contains(100) {
		t.Error("100 should be outside 50-100")
	}

	if r.Len() != 50 {
		t.Errorf("Len() = %d, want 50", r.Len())
	}
}
