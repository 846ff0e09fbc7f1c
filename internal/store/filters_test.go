package store

import (
	"strings"
	"testing"
	"time"
)

func TestProductFilterDefaultsToPublished(t *testing.T) {
	where, args := ProductFilter{}.where()
	if where != "WHERE is_published" {
		t.Errorf("Unexpected where clause %q", where)
	}
	if len(args) != 0 {
		t.Errorf("Expected no args, got %v", args)
	}
}

func TestProductFilterNumbersPlaceholders(t *testing.T) {
	producer := int64(7)
	category := int64(3)
	where, args := ProductFilter{
		ProducerID:         &producer,
		CategoryID:         &category,
		UnitType:           "kg",
		Search:             "mango",
		IncludeUnpublished: true,
	}.where()

	if strings.Contains(where, "is_published") {
		t.Errorf("unpublished products should be included: %q", where)
	}
	for _, want := range []string{"producer_id = $1", "category_id = $2", "unit_type = $3", "name ILIKE $4", "location_commune ILIKE $4"} {
		if !strings.Contains(where, want) {
			t.Errorf("where clause %q missing %q", where, want)
		}
	}
	if len(args) != 4 {
		t.Fatalf("Expected 4 args, got %d", len(args))
	}
	if args[3] != "%mango%" {
		t.Errorf("Expected search pattern %%mango%%, got %v", args[3])
	}
}

func TestParseStatsRange(t *testing.T) {
	r := ParseStatsRange("2025-01-10", "2025-01-20")
	if r.Start == nil || r.End == nil {
		t.Fatalf("Expected both bounds, got %+v", r)
	}
	if want := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC); !r.Start.Equal(want) {
		t.Errorf("Expected start %v, got %v", want, r.Start)
	}
	if want := time.Date(2025, 1, 20, 23, 59, 59, 0, time.UTC); !r.End.Equal(want) {
		t.Errorf("Expected end %v, got %v", want, r.End)
	}
}

func TestParseStatsRangeRFC3339EndCoversDay(t *testing.T) {
	r := ParseStatsRange("", "2025-02-01T08:30:00+01:00")
	if r.Start != nil {
		t.Errorf("Expected open start, got %v", r.Start)
	}
	if r.End == nil {
		t.Fatal("Expected end bound")
	}
	if r.End.Hour() != 23 || r.End.Minute() != 59 || r.End.Second() != 59 || r.End.Day() != 1 {
		t.Errorf("Expected end of day, got %v", r.End)
	}
}

func TestParseStatsRangeIgnoresMalformed(t *testing.T) {
	r := ParseStatsRange("yesterday", "2025-13-45")
	if r.Start != nil || r.End != nil {
		t.Errorf("Malformed bounds should be ignored, got %+v", r)
	}
}

func TestStatsRangeWhere(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	where, args := StatsRange{Start: &start}.where(9)

	if where != "o.producer_id = $1 AND o.created_at >= $2" {
		t.Errorf("Unexpected where clause %q", where)
	}
	if len(args) != 2 || args[0] != int64(9) {
		t.Errorf("Unexpected args %v", args)
	}
}
