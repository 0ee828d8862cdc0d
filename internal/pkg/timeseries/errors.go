package timeseries

import "fmt"

// DataShapeError reports a series whose length is incompatible with the
// horizon and the number of change intervals of its unit.
type DataShapeError struct {
	Name      string
	Len       int
	Horizon   int
	Intervals int
}

func (e *DataShapeError) Error() string {
	name := e.Name
	if name == "" {
		name = "series"
	}
	return fmt.Sprintf("%s: length %d incompatible with horizon %d and %d change intervals",
		name, e.Len, e.Horizon, e.Intervals)
}

// Named returns err with the series name filled in when err is a
// *DataShapeError without one.
func Named(err error, name string) error {
	if dse, ok := err.(*DataShapeError); ok && dse.Name == "" {
		dse.Name = name
	}
	return err
}
