package main

import "testing"

func TestParseID(t *testing.T) {
	if id, err := parseID(" 42 "); err != nil || id != 42 {
		t.Fatalf("want 42, got %d err=%v", id, err)
	}
	for _, raw := range []string{"", "0", "-1", "abc"} {
		if _, err := parseID(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("")
	if err != nil || got != nil {
		t.Fatalf("empty input should be nil, got %v err=%v", got, err)
	}
	got, err = parseDate("2026-03-01")
	if err != nil || got == nil || got.Day() != 1 || got.Month() != 3 {
		t.Fatalf("unexpected date %v err=%v", got, err)
	}
	got, err = parseDate("2026-03-01T08:30:00Z")
	if err != nil || got == nil || got.Hour() != 8 {
		t.Fatalf("unexpected rfc3339 %v err=%v", got, err)
	}
	if _, err := parseDate("03/01/2026"); err == nil {
		t.Fatalf("expected error for unsupported layout")
	}
}
