// Package schedule decides when a backup target is due. A Spec is parsed
// once at load time; evaluation is a pure function of (spec, now, lastRun)
// and safe to call concurrently for many targets.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSpec indicates a schedule string that is neither a preset nor a
// parseable cron expression. Surfaced once at load time; the target is
// treated as never-due until corrected.
var ErrInvalidSpec = errors.New("invalid schedule")

// Preset intervals. These are fixed durations, not calendar arithmetic:
// "monthly" is 30 days regardless of month length. Operators who need
// calendar semantics use a cron expression instead.
const (
	PresetHourly  = "hourly"
	PresetDaily   = "daily"
	PresetWeekly  = "weekly"
	PresetMonthly = "monthly"
)

var presetIntervals = map[string]time.Duration{
	PresetHourly:  time.Hour,
	PresetDaily:   24 * time.Hour,
	PresetWeekly:  7 * 24 * time.Hour,
	PresetMonthly: 30 * 24 * time.Hour,
}

// cronParser accepts five-field expressions and six-field expressions with
// a leading seconds column, plus @descriptors.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Spec is a parsed schedule: either a preset interval or a cron expression.
type Spec struct {
	raw      string
	interval time.Duration // preset form; zero when cron is set
	cron     cron.Schedule
}

// Parse turns a raw schedule string into a Spec.
func Parse(raw string) (*Spec, error) {
	trimmed := strings.TrimSpace(strings.ToLower(raw))
	if iv, ok := presetIntervals[trimmed]; ok {
		return &Spec{raw: trimmed, interval: iv}, nil
	}
	sched, err := cronParser.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSpec, raw, err)
	}
	return &Spec{raw: raw, cron: sched}, nil
}

// IsDue reports whether a run is due at now given the last attempted run.
// A target that has never run is due immediately. The result is monotonic:
// once due, it stays due until a run is recorded.
func (s *Spec) IsDue(now time.Time, lastRun *time.Time) bool {
	if lastRun == nil || lastRun.IsZero() {
		return true
	}
	if s.interval > 0 {
		return now.Sub(*lastRun) >= s.interval
	}
	next := s.cron.Next(*lastRun)
	return !next.After(now)
}

// Next returns the first scheduled instant after from. For presets this is
// from plus the interval.
func (s *Spec) Next(from time.Time) time.Time {
	if s.interval > 0 {
		return from.Add(s.interval)
	}
	return s.cron.Next(from)
}

// String returns the original schedule expression.
func (s *Spec) String() string { return s.raw }
