package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/gorhill/cronexpr"
)

// ErrInvalidTrigger is returned for triggers that can never fire.
var ErrInvalidTrigger = errors.New("invalid trigger")

// Trigger computes fire times.
type Trigger interface {
	// First returns the first fire time for a job registered at now. It may
	// lie in the past; the misfire policy decides what happens then.
	First(now time.Time) (time.Time, error)
	// Next returns the fire time after prev, or false when the trigger is spent.
	Next(prev time.Time) (time.Time, bool)
	String() string
}

type atTrigger struct {
	at time.Time
}

// At fires once at t.
func At(t time.Time) Trigger { return atTrigger{at: t} }

func (a atTrigger) First(time.Time) (time.Time, error) {
	if a.at.IsZero() {
		return time.Time{}, fmt.Errorf("%w: zero timestamp", ErrInvalidTrigger)
	}
	return a.at, nil
}

func (atTrigger) Next(time.Time) (time.Time, bool) { return time.Time{}, false }

func (a atTrigger) String() string { return "at " + a.at.Format(time.RFC3339) }

type cronTrigger struct {
	spec string
	expr *cronexpr.Expression
}

// Cron fires on every match of a cron expression.
func Cron(spec string) (Trigger, error) {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTrigger, err)
	}
	return cronTrigger{spec: spec, expr: expr}, nil
}

func (c cronTrigger) First(now time.Time) (time.Time, error) {
	next := c.expr.Next(now)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("%w: %q never fires", ErrInvalidTrigger, c.spec)
	}
	return next, nil
}

func (c cronTrigger) Next(prev time.Time) (time.Time, bool) {
	next := c.expr.Next(prev)
	return next, !next.IsZero()
}

func (c cronTrigger) String() string { return "cron " + c.spec }
