package handlers

import (
	"testing"
	"time"
)

func TestParsePaginationParamsDefaults(t *testing.T) {
	page, limit, err := parsePaginationParams("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page != 1 || limit != 20 {
		t.Errorf("defaults = (%d, %d), want (1, 20)", page, limit)
	}
}

func TestParsePaginationParamsInvalid(t *testing.T) {
	if _, _, err := parsePaginationParams("0", "10"); err == nil {
		t.Error("expected error for page 0")
	}
	if _, _, err := parsePaginationParams("1", "abc"); err == nil {
		t.Error("expected error for non-numeric limit")
	}
}

func TestDateRangeFilter(t *testing.T) {
	filter, err := dateRangeFilter("2026-01-01", "2026-01-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := filter["$gte"].(time.Time)
	if start.Format("2006-01-02") != "2026-01-01" {
		t.Errorf("start = %v", start)
	}
	// End bound is exclusive at midnight of the following day, so the whole
	// end day is included but nothing stamped exactly at next-day 00:00:00.
	end, ok := filter["$lt"].(time.Time)
	if !ok {
		t.Fatalf("end bound = %v, want exclusive $lt", filter)
	}
	if end.Format("2006-01-02") != "2026-02-01" {
		t.Errorf("end = %v", end)
	}
}

func TestDateRangeFilterEmpty(t *testing.T) {
	filter, err := dateRangeFilter("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter != nil {
		t.Errorf("filter = %v, want nil", filter)
	}
}

func TestDateRangeFilterInvalid(t *testing.T) {
	if _, err := dateRangeFilter("01/02/2026", ""); err == nil {
		t.Error("expected error for malformed startDate")
	}
}
