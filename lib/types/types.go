// Package types contains nullable configuration types in the vein of
// gopkg.in/guregu/null.v3.
package types

import (
	"fmt"
	"strconv"
	"time"
)

// Duration is an alias for time.Duration that parses bare numbers as seconds,
// the unit every protocol timeout in this module is expressed in.
type Duration time.Duration

// String returns a string representation of the duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// ParseDuration parses "1m30s" style durations as well as plain numbers of
// seconds ("30", "2.5").
func ParseDuration(data string) (time.Duration, error) {
	if t, errp := strconv.ParseFloat(data, 64); errp == nil {
		if t < 0 {
			return 0, fmt.Errorf("'%s' is a negative duration", data)
		}
		return time.Duration(t * float64(time.Second)), nil
	}
	v, err := time.ParseDuration(data)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("'%s' is a negative duration", data)
	}
	return v, nil
}

// UnmarshalText converts text data to Duration
func (d *Duration) UnmarshalText(data []byte) error {
	v, err := ParseDuration(string(data))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// NullDuration is a nullable Duration.
type NullDuration struct {
	Duration
	Valid bool
}

// NewNullDuration is a simple helper constructor function
func NewNullDuration(d time.Duration, valid bool) NullDuration {
	return NullDuration{Duration(d), valid}
}

// NullDurationFrom returns a new valid NullDuration from a time.Duration.
func NullDurationFrom(d time.Duration) NullDuration {
	return NullDuration{Duration(d), true}
}

// UnmarshalText converts text data to a valid NullDuration
func (d *NullDuration) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*d = NullDuration{}
		return nil
	}
	if err := d.Duration.UnmarshalText(data); err != nil {
		return err
	}
	d.Valid = true
	return nil
}

// TimeDuration returns a NullDuration's value as a stdlib Duration.
func (d NullDuration) TimeDuration() time.Duration {
	return time.Duration(d.Duration)
}
