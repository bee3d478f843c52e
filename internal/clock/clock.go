package clock

import "time"

// Clock abstracts "now" so scheduler and scoring logic can be tested against
// a fixed instant.
type Clock interface {
	Now() time.Time
}

type systemClock struct {
	loc *time.Location
}

// NewSystem returns a Clock reporting wall-clock time in the named zone.
func NewSystem(timezone string) (Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &systemClock{loc: loc}, nil
}

func (c *systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Fixed is a Clock pinned to one instant, advanced explicitly by tests.
type Fixed struct {
	Current time.Time
}

func (f *Fixed) Now() time.Time {
	return f.Current
}

func (f *Fixed) Advance(d time.Duration) {
	f.Current = f.Current.Add(d)
}
