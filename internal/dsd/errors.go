package dsd

import (
	"fmt"
	"strconv"
	"time"
)

// ConfigurationError reports a malformed diameter bin table or an unknown
// instrument configuration.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "bin table configuration: " + e.Reason
}

// ShapeError reports a spectrum whose concentration sequence does not match
// the bin table it is being appended against.
type ShapeError struct {
	Got  int
	Want int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("spectrum has %d bins, bin table has %d", e.Got, e.Want)
}

// OrderError reports an out-of-order timestamp appended to a container in
// strict (default) ordering mode.
type OrderError struct {
	Timestamp time.Time
	Last      time.Time
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("timestamp %s is earlier than last appended %s",
		e.Timestamp.Format(time.RFC3339), e.Last.Format(time.RFC3339))
}

// UnknownFieldError reports a request for a derived field that has no
// registered calculator.
type UnknownFieldError struct {
	Name string
}

func (e *UnknownFieldError) Error() string {
	return "unknown derived field " + strconv.Quote(e.Name)
}
