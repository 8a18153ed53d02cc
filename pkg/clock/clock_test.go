package clock

import (
	"testing"
	"time"
)

func TestNowIsMonotonicNonDecreasing(t *testing.T) {
	ticks := []time.Time{
		time.Unix(1000, 0),
		time.Unix(999, 0), // wall clock stepped back
		time.Unix(1001, 0),
	}
	i := 0
	svc := NewWithNow(func() time.Time {
		tt := ticks[i]
		if i < len(ticks)-1 {
			i++
		}
		return tt
	})

	a := svc.Now()
	b := svc.Now()
	c := svc.Now()
	if b < a || c < b {
		t.Fatalf("expected non-decreasing sequence, got %d %d %d", a, b, c)
	}
}

func TestISORoundTrip(t *testing.T) {
	for _, ts := range []int64{0, 1, 1715040000, 1767225600} {
		iso := EpochToISO(ts)
		back, err := ISOToEpoch(iso)
		if err != nil {
			t.Fatalf("parse %q: %v", iso, err)
		}
		if back != ts {
			t.Fatalf("round trip %d -> %q -> %d", ts, iso, back)
		}
	}
}

func TestISOToEpochFallbackFormats(t *testing.T) {
	if _, err := ISOToEpoch("2025-07-27T22:17:32Z"); err != nil {
		t.Fatalf("rfc3339 should parse: %v", err)
	}
	if _, err := ISOToEpoch("2025-07-27 22:17:32"); err != nil {
		t.Fatalf("naive datetime should parse: %v", err)
	}
	if _, err := ISOToEpoch("not a time"); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}

func TestSameLocalDay(t *testing.T) {
	svc := NewWithNow(func() time.Time { return time.Unix(1767225600, 0) })

	// 2025-06-15 23:30 UTC and 2025-06-16 00:30 UTC are the same London day
	// only when BST (+1) shifts the first past midnight.
	a := time.Date(2025, 6, 15, 23, 30, 0, 0, time.UTC).Unix()
	b := time.Date(2025, 6, 16, 0, 30, 0, 0, time.UTC).Unix()
	if !svc.SameLocalDay(a, b) {
		t.Fatalf("expected same London day across BST midnight shift")
	}

	c := time.Date(2025, 6, 17, 12, 0, 0, 0, time.UTC).Unix()
	if svc.SameLocalDay(a, c) {
		t.Fatalf("expected different days")
	}
}

func TestFormatAge(t *testing.T) {
	now := time.Unix(100000, 0)
	svc := NewWithNow(func() time.Time { return now })

	cases := map[int64]string{
		now.Unix() - 10:    "Just now",
		now.Unix() - 300:   "5m ago",
		now.Unix() - 5400:  "1.5h ago",
		now.Unix() - 90000: "1d ago",
	}
	for ts, want := range cases {
		if got := svc.FormatAge(ts); got != want {
			t.Fatalf("FormatAge(%d) = %q, want %q", ts, got, want)
		}
	}
}

func TestHoursSinceClampsNegative(t *testing.T) {
	now := time.Unix(1000, 0)
	svc := NewWithNow(func() time.Time { return now })
	if h := svc.HoursSince(now.Unix() + 500); h != 0 {
		t.Fatalf("future timestamp should clamp to 0, got %f", h)
	}
}
