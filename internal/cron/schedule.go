package cron

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts 5-field expressions with an optional leading
// seconds field, including names ("JAN", "MON") and steps ("*/5").
var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow,
)

// ScheduleKind distinguishes the two supported schedule forms.
type ScheduleKind string

const (
	KindCron     ScheduleKind = "cron"
	KindInterval ScheduleKind = "interval"
)

// Schedule is a parsed task schedule: either a cron expression or a
// fixed interval.
type Schedule struct {
	Kind     ScheduleKind
	Expr     string
	Every    time.Duration
	Timezone string
}

// ParseCron validates and wraps a 5- or 6-field cron expression.
func ParseCron(expr, timezone string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Schedule{}, fmt.Errorf("cron expression required")
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return Schedule{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return Schedule{}, fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
	}
	return Schedule{Kind: KindCron, Expr: expr, Timezone: timezone}, nil
}

// Interval wraps a fixed run interval. The first run happens one full
// interval after scheduling.
func Interval(every time.Duration) (Schedule, error) {
	if every <= 0 {
		return Schedule{}, fmt.Errorf("interval must be positive, got %s", every)
	}
	return Schedule{Kind: KindInterval, Every: every}, nil
}

// Next computes the run following now. Recomputing from the current
// wall clock after each firing keeps long-running handlers from
// accumulating drift.
func (s Schedule) Next(now time.Time) (time.Time, error) {
	switch s.Kind {
	case KindInterval:
		if s.Every <= 0 {
			return time.Time{}, fmt.Errorf("interval schedule missing duration")
		}
		return now.Add(s.Every), nil
	case KindCron:
		spec, err := cronParser.Parse(s.Expr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron expression: %w", err)
		}
		loc := now.Location()
		if s.Timezone != "" {
			if tz, err := time.LoadLocation(s.Timezone); err == nil {
				loc = tz
			}
		}
		next := spec.Next(now.In(loc))
		if next.IsZero() {
			return time.Time{}, fmt.Errorf("cron expression %q has no future firing", s.Expr)
		}
		return next, nil
	default:
		return time.Time{}, fmt.Errorf("unknown schedule kind %q", s.Kind)
	}
}
