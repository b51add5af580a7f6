// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

// EFI Runtime Services offset for ResetSystem
const resetSystem = 0x68

// EFI_RESET_TYPE
const (
	EfiResetCold = iota
	EfiResetWarm
	EfiResetShutdown
	EfiResetPlatformSpecific
)

// ResetSystem calls EFI_RUNTIME_SERVICES.ResetSystem(), it does not return
// on success.
func (s *RuntimeServices) ResetSystem(resetType int) (err error) {
	if resetType < EfiResetCold || resetType > EfiResetPlatformSpecific {
		return ErrInvalidParameter
	}

	status := s.call(resetSystem,
		uint64(resetType),
		uint64(EFI_SUCCESS),
		uint64(0),
		uint64(0),
	)

	return parseStatus(status)
}
