package robot

// Frontend is the user-facing side of the control-plane buffer.  Test
// code submits actions through it and reads back the observation that
// each action produced.
type Frontend struct {
	data *Data
}

// NewFrontend creates a frontend reading from and writing to data.
func NewFrontend(data *Data) *Frontend {
	return &Frontend{data: data}
}

// AppendDesiredAction submits an action and returns the time index at
// which it will be applied.  It blocks while the buffer is full.
func (f *Frontend) AppendDesiredAction(a Action) (TimeIndex, error) {
	return f.data.appendDesired(a)
}

// WaitUntilTimeindex blocks until step t has been processed by the
// backend.
func (f *Frontend) WaitUntilTimeindex(t TimeIndex) error {
	return f.data.WaitUntilIndex(t)
}

// GetObservation returns the observation of step t, blocking until it
// is available.
func (f *Frontend) GetObservation(t TimeIndex) (Observation, error) {
	row, err := f.data.Row(t)
	if err != nil {
		return Observation{}, err
	}
	return row.Observation, nil
}

// GetAppliedAction returns the action that was actually applied at
// step t, after clamping and safety damping.
func (f *Frontend) GetAppliedAction(t TimeIndex) (Action, error) {
	row, err := f.data.Row(t)
	if err != nil {
		return Action{}, err
	}
	return row.Applied, nil
}

// GetCurrentTimeindex returns the most recently processed time index,
// or -1 before the first step.
func (f *Frontend) GetCurrentTimeindex() TimeIndex {
	return f.data.CurrentIndex()
}
