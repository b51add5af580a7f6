// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"time"
)

// EFI Runtime Services offsets for Time Services
const (
	getTime = 0x18
	setTime = 0x20
)

// EFI_UNSPECIFIED_TIMEZONE indicates a local time without offset.
const EFI_UNSPECIFIED_TIMEZONE = 0x07ff

// EFI_TIME Daylight flags
const (
	EFI_TIME_ADJUST_DAYLIGHT = 0x01
	EFI_TIME_IN_DAYLIGHT     = 0x02
)

// Time represents an EFI_TIME instance.
type Time struct {
	Year       uint16
	Month      uint8
	Day        uint8
	Hour       uint8
	Minute     uint8
	Second     uint8
	_          uint8
	Nanosecond uint32
	TimeZone   int16
	Daylight   uint8
	_          uint8
}

// TimeCapabilities represents an EFI_TIME_CAPABILITIES instance.
type TimeCapabilities struct {
	Resolution uint32
	Accuracy   uint32
	SetsToZero uint8
	_          [3]byte
}

// Time converts the EFI time to a [time.Time], an unspecified time zone is
// interpreted as UTC.
func (t *Time) Time() time.Time {
	loc := time.UTC

	if t.TimeZone != EFI_UNSPECIFIED_TIMEZONE {
		// offset in minutes from UTC
		loc = time.FixedZone("", int(t.TimeZone)*60)
	}

	return time.Date(int(t.Year), time.Month(t.Month), int(t.Day),
		int(t.Hour), int(t.Minute), int(t.Second), int(t.Nanosecond), loc)
}

// NewTime converts a [time.Time] to an EFI time expressed in UTC.
func NewTime(tm time.Time) *Time {
	tm = tm.UTC()

	return &Time{
		Year:       uint16(tm.Year()),
		Month:      uint8(tm.Month()),
		Day:        uint8(tm.Day()),
		Hour:       uint8(tm.Hour()),
		Minute:     uint8(tm.Minute()),
		Second:     uint8(tm.Second()),
		Nanosecond: uint32(tm.Nanosecond()),
	}
}

// GetTime calls EFI_RUNTIME_SERVICES.GetTime().
func (s *RuntimeServices) GetTime() (t *Time, c *TimeCapabilities, err error) {
	t = &Time{}
	c = &TimeCapabilities{}

	tbuf := make([]byte, binary.Size(t))
	cbuf := make([]byte, binary.Size(c))

	status := s.call(getTime, tbuf, cbuf)

	if err = parseStatus(status); err != nil {
		return nil, nil, err
	}

	if err = unmarshalBinary(tbuf, t); err != nil {
		return nil, nil, err
	}

	if err = unmarshalBinary(cbuf, c); err != nil {
		return nil, nil, err
	}

	return
}

// SetTime calls EFI_RUNTIME_SERVICES.SetTime().
func (s *RuntimeServices) SetTime(t *Time) (err error) {
	buf, err := marshalBinary(t)

	if err != nil {
		return
	}

	status := s.call(setTime, buf)

	return parseStatus(status)
}
