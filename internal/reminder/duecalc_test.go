package reminder

import (
	"testing"
	"time"
)

func TestComputeDueAtLastDayMode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		now     time.Time
		wantDay int
	}{
		{name: "leap february", now: time.Date(2024, time.February, 10, 12, 0, 0, 0, time.UTC), wantDay: 29},
		{name: "regular february", now: time.Date(2023, time.February, 10, 12, 0, 0, 0, time.UTC), wantDay: 28},
		{name: "thirty day month", now: time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), wantDay: 30},
		{name: "december", now: time.Date(2025, time.December, 31, 23, 0, 0, 0, time.UTC), wantDay: 31},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ComputeDueAt(tc.now, Schedule{DayMode: DayModeLastDay, TimeOfDay: "10:00"})
			if got.Day() != tc.wantDay {
				t.Fatalf("expected day %d, got %d", tc.wantDay, got.Day())
			}
			if got.Month() != tc.now.Month() || got.Year() != tc.now.Year() {
				t.Fatalf("due date left the billing period: %v", got)
			}
			if got.Hour() != 10 || got.Minute() != 0 {
				t.Fatalf("expected 10:00, got %02d:%02d", got.Hour(), got.Minute())
			}
		})
	}
}

func TestComputeDueAtCustomDayClamped(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.April, 5, 0, 0, 0, 0, time.UTC)
	got := ComputeDueAt(now, Schedule{DayMode: DayModeCustomDay, DayOfMonth: 31, TimeOfDay: "09:30"})
	if got.Day() != 30 {
		t.Fatalf("expected day clamped to 30, got %d", got.Day())
	}

	got = ComputeDueAt(now, Schedule{DayMode: DayModeCustomDay, DayOfMonth: 0, TimeOfDay: "09:30"})
	if got.Day() != 1 {
		t.Fatalf("expected day raised to 1, got %d", got.Day())
	}

	got = ComputeDueAt(now, Schedule{DayMode: DayModeCustomDay, DayOfMonth: 15, TimeOfDay: "09:30"})
	if got.Day() != 15 {
		t.Fatalf("expected day 15, got %d", got.Day())
	}
}

func TestComputeDueAtTimeOfDayFallbacks(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		timeOfDay  string
		wantHour   int
		wantMinute int
	}{
		{name: "valid", timeOfDay: "14:45", wantHour: 14, wantMinute: 45},
		{name: "empty falls back", timeOfDay: "", wantHour: 9, wantMinute: 30},
		{name: "garbage falls back", timeOfDay: "noon", wantHour: 9, wantMinute: 30},
		{name: "hour clamped", timeOfDay: "99:10", wantHour: 23, wantMinute: 10},
		{name: "minute clamped", timeOfDay: "10:99", wantHour: 10, wantMinute: 59},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ComputeDueAt(now, Schedule{DayMode: DayModeLastDay, TimeOfDay: tc.timeOfDay})
			if got.Hour() != tc.wantHour || got.Minute() != tc.wantMinute {
				t.Fatalf("expected %02d:%02d, got %02d:%02d", tc.wantHour, tc.wantMinute, got.Hour(), got.Minute())
			}
		})
	}
}

func TestComputeDueAtUsesScheduleLocation(t *testing.T) {
	t.Parallel()

	colombo, err := time.LoadLocation("Asia/Colombo")
	if err != nil {
		t.Fatalf("failed to load location: %v", err)
	}

	// Late on Jan 31 UTC it is already Feb 1 in Colombo, so the due date
	// must land in February there.
	now := time.Date(2025, time.January, 31, 23, 0, 0, 0, time.UTC)
	got := ComputeDueAt(now, Schedule{DayMode: DayModeLastDay, TimeOfDay: "09:30", Location: colombo})
	if got.Month() != time.February {
		t.Fatalf("expected due date in February, got %v", got)
	}
	if got.Location() != colombo {
		t.Fatalf("expected due date in Asia/Colombo, got %v", got.Location())
	}
}

func TestComputeDueAtNilLocationFallsBackToReference(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)
	got := ComputeDueAt(now, Schedule{DayMode: DayModeLastDay, TimeOfDay: "09:30"})
	if got.Location() != time.UTC {
		t.Fatalf("expected due date in the reference zone, got %v", got.Location())
	}
}

func TestPeriodKey(t *testing.T) {
	t.Parallel()

	got := PeriodKey(time.Date(2025, time.March, 31, 23, 59, 0, 0, time.UTC))
	if got != "2025-03" {
		t.Fatalf("expected 2025-03, got %s", got)
	}

	got = PeriodKey(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	if got != "2024-01" {
		t.Fatalf("expected 2024-01, got %s", got)
	}
}
