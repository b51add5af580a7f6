// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"time"
)

const (
	// EFI Boot Services offset for SetWatchdogTimer
	setWatchdogTimer = 0x100
	watchdogCode     = 0xba3e5e7a1
)

// SetWatchdogTimer calls EFI_BOOT_SERVICES.SetWatchdogTimer(), a zero timeout
// disables the watchdog.
func (s *BootServices) SetWatchdogTimer(timeout time.Duration) (err error) {
	if err = s.valid(); err != nil {
		return
	}

	status := s.call(setWatchdogTimer,
		uint64(timeout/time.Second),
		uint64(watchdogCode),
		uint64(0),
		uint64(0),
	)

	return parseStatus(status)
}
