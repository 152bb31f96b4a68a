// Package schedule contains the pure schedule evaluation logic: deciding when
// a job should run next, and how long to back off after a failure.
package schedule

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind discriminates the schedule variants.
type Kind string

const (
	KindOnce     Kind = "once"
	KindInterval Kind = "interval"
	KindCron     Kind = "cron"
)

// Schedule is a tagged union over the three supported schedule variants.
// Exactly the fields belonging to Kind are meaningful.
type Schedule struct {
	Kind Kind

	// once
	At time.Time

	// interval
	Every time.Duration

	// cron
	Expression string
	Timezone   string // IANA zone name, optional
}

// Once returns a schedule that fires a single time at t.
func Once(t time.Time) Schedule {
	return Schedule{Kind: KindOnce, At: t}
}

// Interval returns a schedule that fires immediately and then every d.
func Interval(d time.Duration) Schedule {
	return Schedule{Kind: KindInterval, Every: d}
}

// Cron returns a schedule driven by a standard 5-field cron expression,
// evaluated in tz (or the local zone when tz is empty).
func Cron(expr, tz string) Schedule {
	return Schedule{Kind: KindCron, Expression: expr, Timezone: tz}
}

// InvalidError is returned when a schedule fails validation.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid schedule: %s", e.Reason)
}

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks that the schedule is well formed. It is called eagerly at
// hire/job creation so malformed schedules never reach the store.
func Validate(s Schedule) error {
	switch s.Kind {
	case KindOnce:
		if s.At.IsZero() {
			return &InvalidError{Reason: "once schedule requires a run time"}
		}
	case KindInterval:
		if s.Every <= 0 {
			return &InvalidError{Reason: "interval must be positive"}
		}
	case KindCron:
		if _, err := cronParser.Parse(s.Expression); err != nil {
			return &InvalidError{Reason: fmt.Sprintf("cron expression %q: %v", s.Expression, err)}
		}
		if s.Timezone != "" {
			if _, err := time.LoadLocation(s.Timezone); err != nil {
				return &InvalidError{Reason: fmt.Sprintf("timezone %q: %v", s.Timezone, err)}
			}
		}
	default:
		return &InvalidError{Reason: fmt.Sprintf("unknown schedule kind %q", s.Kind)}
	}
	return nil
}

// InitialNextRun computes the first eligible dispatch time for a freshly
// created job. A once schedule keeps its configured time even if it is
// already in the past; past-due once jobs fire on the next tick.
func InitialNextRun(s Schedule, now time.Time) (time.Time, error) {
	switch s.Kind {
	case KindOnce:
		return s.At, nil
	case KindInterval:
		return now, nil
	case KindCron:
		return cronNext(s, now)
	default:
		return time.Time{}, &InvalidError{Reason: fmt.Sprintf("unknown schedule kind %q", s.Kind)}
	}
}

// NextRunAfterSuccess computes the dispatch time following a successful run.
// A nil result means the schedule is exhausted and the job is complete.
func NextRunAfterSuccess(s Schedule, now time.Time) (*time.Time, error) {
	switch s.Kind {
	case KindOnce:
		return nil, nil
	case KindInterval:
		t := now.Add(s.Every)
		return &t, nil
	case KindCron:
		t, err := cronNext(s, now)
		if err != nil {
			return nil, err
		}
		return &t, nil
	default:
		return nil, &InvalidError{Reason: fmt.Sprintf("unknown schedule kind %q", s.Kind)}
	}
}

// cronNext returns the first occurrence strictly after now.
func cronNext(s Schedule, now time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(s.Expression)
	if err != nil {
		return time.Time{}, &InvalidError{Reason: fmt.Sprintf("cron expression %q: %v", s.Expression, err)}
	}
	if s.Timezone != "" {
		loc, err := time.LoadLocation(s.Timezone)
		if err != nil {
			return time.Time{}, &InvalidError{Reason: fmt.Sprintf("timezone %q: %v", s.Timezone, err)}
		}
		now = now.In(loc)
	}
	return sched.Next(now), nil
}

// scheduleJSON is the wire/storage form of a Schedule.
type scheduleJSON struct {
	Kind       Kind       `json:"kind"`
	At         *time.Time `json:"at,omitempty"`
	EveryMS    int64      `json:"every_ms,omitempty"`
	Expression string     `json:"expression,omitempty"`
	Timezone   string     `json:"timezone,omitempty"`
}

// MarshalJSON encodes only the fields belonging to the schedule kind.
func (s Schedule) MarshalJSON() ([]byte, error) {
	out := scheduleJSON{Kind: s.Kind}
	switch s.Kind {
	case KindOnce:
		at := s.At
		out.At = &at
	case KindInterval:
		out.EveryMS = s.Every.Milliseconds()
	case KindCron:
		out.Expression = s.Expression
		out.Timezone = s.Timezone
	}
	return json.Marshal(out)
}

func (s *Schedule) UnmarshalJSON(data []byte) error {
	var in scheduleJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Schedule{Kind: in.Kind, Expression: in.Expression, Timezone: in.Timezone}
	if in.At != nil {
		s.At = *in.At
	}
	s.Every = time.Duration(in.EveryMS) * time.Millisecond
	return nil
}
