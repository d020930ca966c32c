// Package schedule abstracts timers so that timed behaviour can be driven by hand in tests.
package schedule

import (
	"sync"
	"time"
)

// Timer is a scheduled callback that can be stopped
type Timer interface {
	// Stop prevents further runs. It reports whether the timer was still active.
	Stop() bool
}

// Scheduler creates timers and reports the current time
type Scheduler interface {
	Now() time.Time
	// AfterFunc runs f once after d
	AfterFunc(d time.Duration, f func()) Timer
	// Every runs f every d until stopped
	Every(d time.Duration, f func()) Timer
}

// Real is a Scheduler backed by the runtime clock
type Real struct{}

// NewReal returns the wall-clock scheduler
func NewReal() Real {
	return Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (Real) Every(d time.Duration, f func()) Timer {
	t := &ticker{
		ticker:   time.NewTicker(d),
		stopChan: make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-t.ticker.C:
				f()
			case <-t.stopChan:
				return
			}
		}
	}()
	return t
}

type ticker struct {
	ticker   *time.Ticker
	stopChan chan struct{}
	once     sync.Once
}

func (t *ticker) Stop() bool {
	stopped := false
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.stopChan)
		stopped = true
	})
	return stopped
}
