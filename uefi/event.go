// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"time"
)

// EFI Boot Services offsets
const (
	createEvent = 0x50
	setTimer    = 0x58
	closeEvent  = 0x70
	checkEvent  = 0x78
	stall       = 0xf8
)

// EFI Event types
const (
	EVT_TIMER                         = 0x80000000
	EVT_RUNTIME                       = 0x40000000
	EVT_NOTIFY_WAIT                   = 0x00000100
	EVT_NOTIFY_SIGNAL                 = 0x00000200
	EVT_SIGNAL_EXIT_BOOT_SERVICES     = 0x00000201
	EVT_SIGNAL_VIRTUAL_ADDRESS_CHANGE = 0x60000202
)

// EFI Task Priority Levels
const (
	TPL_APPLICATION = 4
	TPL_CALLBACK    = 8
	TPL_NOTIFY      = 16
	TPL_HIGH_LEVEL  = 31
)

// EFI_TIMER_DELAY
const (
	TimerCancel = iota
	TimerPeriodic
	TimerRelative
)

// PollInterval represents the delay between event checks performed by
// [BootServices.WaitForEvent].
var PollInterval = 1 * time.Millisecond

// Event represents an opaque EFI event.
type Event uint64

// CreateEvent calls EFI_BOOT_SERVICES.CreateEvent(), notification functions
// are not supported.
func (s *BootServices) CreateEvent(eventType uint32, tpl int) (event Event, err error) {
	if err = s.valid(); err != nil {
		return
	}

	if eventType&(EVT_NOTIFY_WAIT|EVT_NOTIFY_SIGNAL) != 0 {
		return 0, ErrInvalidParameter
	}

	status := s.call(createEvent,
		uint64(eventType),
		uint64(tpl),
		uint64(0),
		uint64(0),
		(*uint64)(&event),
	)

	return event, parseStatus(status)
}

// SetTimer calls EFI_BOOT_SERVICES.SetTimer(), the trigger time is rounded
// down to 100ns units.
func (s *BootServices) SetTimer(event Event, timerType int, trigger time.Duration) (err error) {
	if err = s.valid(); err != nil {
		return
	}

	if trigger < 0 {
		return ErrInvalidParameter
	}

	status := s.call(setTimer,
		uint64(event),
		uint64(timerType),
		uint64(trigger/100),
	)

	return parseStatus(status)
}

// CheckEvent calls EFI_BOOT_SERVICES.CheckEvent(), a nil error indicates a
// signaled event while [ErrNotReady] indicates a pending one.
func (s *BootServices) CheckEvent(event Event) (err error) {
	if err = s.valid(); err != nil {
		return
	}

	status := s.call(checkEvent, uint64(event))

	return parseStatus(status)
}

// CloseEvent calls EFI_BOOT_SERVICES.CloseEvent().
func (s *BootServices) CloseEvent(event Event) (err error) {
	if err = s.valid(); err != nil {
		return
	}

	status := s.call(closeEvent, uint64(event))

	return parseStatus(status)
}

// Stall calls EFI_BOOT_SERVICES.Stall().
func (s *BootServices) Stall(d time.Duration) (err error) {
	if err = s.valid(); err != nil {
		return
	}

	status := s.call(stall, uint64(d.Microseconds()))

	return parseStatus(status)
}

// WaitForEvent polls the argument event until it is signaled or the timeout
// expires, in which case [ErrTimeout] is returned.
//
// Unlike EFI_BOOT_SERVICES.WaitForEvent() the function never blocks
// indefinitely, the timeout is measured through a firmware timer event.
func (s *BootServices) WaitForEvent(event Event, timeout time.Duration) (err error) {
	var timer Event

	if timer, err = s.CreateEvent(EVT_TIMER, TPL_APPLICATION); err != nil {
		return
	}

	defer func() {
		if e := s.CloseEvent(timer); err == nil {
			err = e
		}
	}()

	if err = s.SetTimer(timer, TimerRelative, timeout); err != nil {
		return
	}

	for {
		switch err = s.CheckEvent(event); {
		case err == nil:
			return
		case !errors.Is(err, ErrNotReady):
			return
		}

		switch err = s.CheckEvent(timer); {
		case err == nil:
			return ErrTimeout
		case !errors.Is(err, ErrNotReady):
			return
		}

		if err = s.Stall(PollInterval); err != nil {
			return
		}
	}
}
