package globaltime

import (
	"testing"
	"time"
)

func TestMockTime(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 9, 26, 53, 0, time.FixedZone("TRT", 3*3600))
	SetMockTime(fixed)
	defer ResetTime()

	if !Now().Equal(fixed) {
		t.Fatalf("expected mocked time, got %v", Now())
	}
	if UTC().Location() != time.UTC {
		t.Fatalf("UTC() must return a UTC time")
	}
}

func TestDayBounds(t *testing.T) {
	t.Parallel()

	local := time.Date(2025, 3, 15, 1, 30, 0, 0, time.FixedZone("TRT", 3*3600))
	start, end := DayBounds(local)
	if want := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("expected start %v, got %v", want, start)
	}
	if end.Sub(start) != 24*time.Hour {
		t.Fatalf("expected a 24h window, got %v", end.Sub(start))
	}
}
