// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
)

// EFI Boot Services offsets
const (
	exit             = 0xd8
	exitBootServices = 0xe8
)

// exitAttempts bounds the ExitBootServices() attempts performed by
// [Services.ExitBootServices].
const exitAttempts = 2

// ErrOpenCapabilities is returned when exiting EFI Boot Services while
// protocol capabilities obtained with [OpenProtocol] are still open.
var ErrOpenCapabilities = errors.New("protocol capabilities are still open")

// Exit calls EFI_BOOT_SERVICES.Exit() to terminate the image.
func (s *BootServices) Exit(code int) (err error) {
	if err = s.valid(); err != nil {
		return
	}

	status := s.call(exit,
		uint64(s.imageHandle),
		uint64(code),
		uint64(0),
		uint64(0),
	)

	return parseStatus(status)
}

// ExitBootServices calls EFI_BOOT_SERVICES.ExitBootServices() with the
// argument memory map key, which must be obtained from the latest
// [BootServices.GetMemoryMap] invocation.
//
// All capabilities returned by [OpenProtocol] must be closed beforehand. On
// success the instance can no longer be used and the returned Runtime
// Services are the only ones available, on failure the boot phase is left
// unchanged.
func (s *BootServices) ExitBootServices(mapKey uint64) (rt *RuntimeServices, err error) {
	if err = s.valid(); err != nil {
		return
	}

	err = s.guard.transition(func() error {
		if n := s.guard.outstanding(); n > 0 {
			return fmt.Errorf("%w (%d)", ErrOpenCapabilities, n)
		}

		status := s.fw.Call(s.base+exitBootServices,
			uint64(s.imageHandle),
			mapKey,
		)

		s.last.Store(status)

		return parseStatus(status)
	})

	if err != nil {
		return
	}

	rt = s.runtime

	return
}

// ExitBootServices terminates EFI Boot Services, returning the memory map
// valid at the time of exit.
//
// A stale memory map key is handled by fetching the memory map again and
// retrying once, further failures are returned to the caller.
func (s *Services) ExitBootServices() (m *MemoryMap, err error) {
	var bs *BootServices
	var rt *RuntimeServices

	if bs, err = s.BootServices(); err != nil {
		return
	}

	for i := 0; i < exitAttempts; i++ {
		if m, err = bs.GetMemoryMap(); err != nil {
			return nil, err
		}

		rt, err = bs.ExitBootServices(m.MapKey)

		if errors.Is(err, ErrInvalidParameter) {
			continue
		}

		if err != nil {
			return nil, err
		}

		s.Boot = nil
		s.Runtime = rt

		return
	}

	return nil, fmt.Errorf("could not exit EFI Boot Services, %w", err)
}
