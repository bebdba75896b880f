package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestParse_Presets(t *testing.T) {
	for _, raw := range []string{"hourly", "daily", "weekly", "monthly", " Daily "} {
		if _, err := Parse(raw); err != nil {
			t.Errorf("Parse(%q) returned error: %v", raw, err)
		}
	}
}

func TestParse_CronExpressions(t *testing.T) {
	for _, raw := range []string{"0 2 * * *", "0 0 * * * *", "@hourly", "*/5 * * * *"} {
		if _, err := Parse(raw); err != nil {
			t.Errorf("Parse(%q) returned error: %v", raw, err)
		}
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, raw := range []string{"", "every tuesday", "99 99 * * *", "* * *"} {
		_, err := Parse(raw)
		if err == nil {
			t.Errorf("Parse(%q) expected error, got nil", raw)
			continue
		}
		if !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidSpec", raw, err)
		}
	}
}

func TestIsDue_NeverRun(t *testing.T) {
	spec, err := Parse("daily")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if !spec.IsDue(now, nil) {
		t.Error("target with no last run should be due immediately")
	}
	zero := time.Time{}
	if !spec.IsDue(now, &zero) {
		t.Error("target with zero last run should be due immediately")
	}
}

func TestIsDue_PresetIntervals(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		preset  string
		elapsed time.Duration
		want    bool
	}{
		{"hourly", 59 * time.Minute, false},
		{"hourly", time.Hour, true},
		{"daily", 23 * time.Hour, false},
		{"daily", 25 * time.Hour, true},
		{"weekly", 6 * 24 * time.Hour, false},
		{"weekly", 8 * 24 * time.Hour, true},
		{"monthly", 29 * 24 * time.Hour, false},
		{"monthly", 31 * 24 * time.Hour, true},
	}
	for _, tc := range cases {
		spec, err := Parse(tc.preset)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.preset, err)
		}
		last := now.Add(-tc.elapsed)
		if got := spec.IsDue(now, &last); got != tc.want {
			t.Errorf("%s with last run %v ago: IsDue = %v, want %v", tc.preset, tc.elapsed, got, tc.want)
		}
	}
}

func TestIsDue_Cron(t *testing.T) {
	// Daily at 02:00.
	spec, err := Parse("0 2 * * *")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	last := time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)

	before := time.Date(2025, 6, 2, 1, 59, 0, 0, time.UTC)
	if spec.IsDue(before, &last) {
		t.Error("should not be due before the next scheduled instant")
	}
	after := time.Date(2025, 6, 2, 2, 0, 1, 0, time.UTC)
	if !spec.IsDue(after, &last) {
		t.Error("should be due once the scheduled instant has passed")
	}
}

func TestIsDue_Monotonic(t *testing.T) {
	spec, err := Parse("0 2 * * *")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	last := time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)
	due := time.Date(2025, 6, 2, 2, 0, 0, 0, time.UTC)
	if !spec.IsDue(due, &last) {
		t.Fatal("expected due at the scheduled instant")
	}
	// Once due, stays due at every later instant until a run is recorded.
	for _, later := range []time.Duration{time.Minute, time.Hour, 48 * time.Hour} {
		if !spec.IsDue(due.Add(later), &last) {
			t.Errorf("due at t must remain due at t+%v", later)
		}
	}
}

func TestIsDue_Deterministic(t *testing.T) {
	spec, err := Parse("hourly")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-2 * time.Hour)
	first := spec.IsDue(now, &last)
	for i := 0; i < 100; i++ {
		if spec.IsDue(now, &last) != first {
			t.Fatal("IsDue must be deterministic for fixed inputs")
		}
	}
}

func TestNext(t *testing.T) {
	spec, err := Parse("hourly")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	from := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if got, want := spec.Next(from), from.Add(time.Hour); !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}
}
