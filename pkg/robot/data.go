package robot

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultHistoryLength is the number of control steps kept in the
// time-series buffer before old entries are overwritten.
const DefaultHistoryLength = 1000

// ErrStopped is returned by blocking calls when the backend has shut
// down and the requested time index will never be processed.
var ErrStopped = errors.New("robot: backend stopped")

// Row is the complete record of one control step.
type Row struct {
	Index       TimeIndex
	Stamp       time.Time
	Desired     Action
	Applied     Action
	Observation Observation
}

type record struct {
	stamp   time.Time
	desired Action
	applied Action
	obs     Observation
}

// Data is the bounded time-series buffer shared between Frontend and
// Backend.  For each of the most recent history-length time indices it
// stores the desired action, the action actually applied after safety
// checks, and the resulting observation.
//
// A Data carries no goroutines of its own; the backend fills it, any
// number of frontends and loggers read from it.
type Data struct {
	mu   sync.Mutex
	cond *sync.Cond

	records []record

	nextDesired   TimeIndex // next index to be assigned by appendDesired
	lastProcessed TimeIndex // highest index with an observation, -1 initially

	stopped bool
	stopErr error
}

// NewData creates a buffer holding historyLength steps.  Pass zero to
// use DefaultHistoryLength.
func NewData(historyLength int) *Data {
	if historyLength <= 0 {
		historyLength = DefaultHistoryLength
	}
	d := &Data{
		records:       make([]record, historyLength),
		lastProcessed: -1,
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

func (d *Data) slot(t TimeIndex) *record {
	return &d.records[int(int64(t)%int64(len(d.records)))]
}

func (d *Data) errLocked() error {
	if d.stopErr != nil {
		return d.stopErr
	}
	return ErrStopped
}

// appendDesired assigns the next time index to the action.  It blocks
// while the buffer is full, i.e. while accepting the action would
// reuse the slot of the most recently processed step.
func (d *Data) appendDesired(a Action) (TimeIndex, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for !d.stopped && int64(d.nextDesired-d.lastProcessed) >= int64(len(d.records)) {
		d.cond.Wait()
	}
	if d.stopped {
		return 0, d.errLocked()
	}

	t := d.nextDesired
	d.slot(t).desired = a
	d.nextDesired++
	d.cond.Broadcast()
	return t, nil
}

// pendingAction returns the desired action for the next unprocessed
// step, if the frontend has provided one.
func (d *Data) pendingAction() (TimeIndex, Action, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := d.lastProcessed + 1
	if t >= d.nextDesired {
		return 0, Action{}, false
	}
	return t, d.slot(t).desired, true
}

// complete records the outcome of step t and makes its observation
// available to readers.  Steps must be completed in order.
func (d *Data) complete(t TimeIndex, applied Action, obs Observation, stamp time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.slot(t)
	r.applied = applied
	r.obs = obs
	r.stamp = stamp
	d.lastProcessed = t
	d.cond.Broadcast()
}

// stop marks the buffer as shut down and wakes all waiters.  Reads of
// already processed indices keep working after stop.
func (d *Data) stop(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	d.stopErr = err
	d.cond.Broadcast()
}

// Stopped reports whether the backend has shut the buffer down.
func (d *Data) Stopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

// CurrentIndex returns the highest time index that has been processed,
// or -1 if no step has completed yet.
func (d *Data) CurrentIndex() TimeIndex {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastProcessed
}

// WaitUntilIndex blocks until step t has been processed.  It returns
// ErrStopped (or the backend's shutdown error) if the backend stops
// before reaching t.
func (d *Data) WaitUntilIndex(t TimeIndex) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for !d.stopped && d.lastProcessed < t {
		d.cond.Wait()
	}
	if d.lastProcessed >= t {
		return nil
	}
	return d.errLocked()
}

// Row returns the full record of step t.  It blocks until the step has
// been processed and errors if the record has already been overwritten.
func (d *Data) Row(t TimeIndex) (Row, error) {
	if err := d.WaitUntilIndex(t); err != nil {
		return Row{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// The slot of step t is reused by the desired action of step
	// t+historyLength, which can arrive well before that step is
	// processed.  Reads of t are invalid from that moment on.
	if int64(d.nextDesired-t) > int64(len(d.records)) {
		return Row{}, fmt.Errorf("robot: time index %d is no longer in the buffer", t)
	}
	r := d.slot(t)
	return Row{
		Index:       t,
		Stamp:       r.stamp,
		Desired:     r.desired,
		Applied:     r.applied,
		Observation: r.obs,
	}, nil
}

// HistoryLength returns the buffer capacity in steps.
func (d *Data) HistoryLength() int {
	return len(d.records)
}
