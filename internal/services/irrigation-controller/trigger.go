package irrigation_controller

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var scheduleParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Trigger fires once per occurrence of a cron schedule (with seconds). It
// compares with >= so a skipped second still fires, once.
type Trigger struct {
	spec  string
	sched cron.Schedule
	loc   *time.Location
	next  int64
}

func NewTrigger(spec string, loc *time.Location) (*Trigger, error) {
	s, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Trigger{spec: spec, sched: s, loc: loc}, nil
}

func (t *Trigger) Due(now Instant) bool {
	if t.next == 0 {
		t.next = t.sched.Next(now.Time(t.loc).Add(-time.Second)).Unix()
	}
	if now.Epoch < t.next {
		return false
	}
	t.next = t.sched.Next(now.Time(t.loc)).Unix()
	return true
}

// Next is the epoch of the next occurrence, 0 before the first evaluation.
func (t *Trigger) Next() int64 { return t.next }

func (t *Trigger) String() string { return t.spec }
