// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Time is a nanosecond-precision timestamp. It marshals to an RFC 3339
// string but also unmarshals from the legacy fractional-seconds form
// (a JSON number of Unix seconds) emitted by earlier versions.
type Time struct {
	time.Time
}

// NewTime strips the monotonic clock reading and normalizes to UTC so that
// round-tripped values compare equal.
func NewTime(t time.Time) Time {
	return Time{t.Round(0).UTC()}
}

// TimeFromUnixNano converts Unix nanoseconds to a Time.
func TimeFromUnixNano(ns int64) Time {
	return NewTime(time.Unix(0, ns))
}

// TimeFromUnixSeconds converts fractional Unix seconds to a Time.
func TimeFromUnixSeconds(s float64) Time {
	sec, frac := math.Modf(s)
	return NewTime(time.Unix(int64(sec), int64(math.Round(frac*1e9))))
}

// UnixSeconds returns the timestamp as fractional Unix seconds, the form
// used by the storage layer.
func (t Time) UnixSeconds() float64 {
	return float64(t.UnixNano()) / 1e9
}

func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(t.UTC().Format(time.RFC3339Nano))), nil
}

func (t *Time) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty timestamp")
	}
	if data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("malformed timestamp %s: %w", data, err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("malformed timestamp %q: %w", s, err)
		}
		*t = NewTime(parsed)
		return nil
	}
	seconds, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("malformed timestamp %s: %w", data, err)
	}
	*t = TimeFromUnixSeconds(seconds)
	return nil
}
