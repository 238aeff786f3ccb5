package domain

import (
	"reflect"
	"testing"
)

func TestClampSetting(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{name: "below minimum", in: 0, want: 1},
		{name: "negative", in: -5, want: 1},
		{name: "in range", in: 42, want: 42},
		{name: "at maximum", in: 100, want: 100},
		{name: "above maximum", in: 5000, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampSetting(tt.in); got != tt.want {
				t.Fatalf("ClampSetting(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestClampLiveCapacity(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{name: "zero", in: 0, want: 2},
		{name: "one", in: 1, want: 2},
		{name: "in range", in: 4, want: 4},
		{name: "at maximum", in: 8, want: 8},
		{name: "durable maximum exceeds live cap", in: 100, want: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampLiveCapacity(tt.in); got != tt.want {
				t.Fatalf("ClampLiveCapacity(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestMatchRecordMembership(t *testing.T) {
	record := MatchRecord{Players: []string{}}

	record.AddPlayer("a")
	record.AddPlayer("b")
	record.AddPlayer("a") // duplicate add is a no-op
	if !reflect.DeepEqual(record.Players, []string{"a", "b"}) {
		t.Fatalf("Players = %v, want [a b]", record.Players)
	}

	if !record.HasPlayer("a") || record.HasPlayer("c") {
		t.Fatalf("HasPlayer gave wrong membership for %v", record.Players)
	}

	if record.RemovePlayer("c") {
		t.Fatalf("RemovePlayer removed a non-member")
	}
	if !record.RemovePlayer("a") {
		t.Fatalf("RemovePlayer failed for a member")
	}
	if !reflect.DeepEqual(record.Players, []string{"b"}) {
		t.Fatalf("Players = %v, want [b]", record.Players)
	}
}

func TestSettingsUpdateApply(t *testing.T) {
	size := 5000
	cols := 12

	record := MatchRecord{Size: 2, Cols: 7, Rows: 9}
	SettingsUpdate{Size: &size, Cols: &cols}.Apply(&record)

	if record.Size != 100 {
		t.Fatalf("Size = %d, want clamped 100", record.Size)
	}
	if record.Cols != 12 {
		t.Fatalf("Cols = %d, want 12", record.Cols)
	}
	// Absent fields stay untouched.
	if record.Rows != 9 {
		t.Fatalf("Rows = %d, want unchanged 9", record.Rows)
	}
}
