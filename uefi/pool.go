// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"fmt"
)

// EFI Boot Service offsets
const (
	allocatePool = 0x40
	freePool     = 0x48
)

// Pool represents a buffer obtained from AllocatePool, the buffer is owned by
// the caller until released with [Pool.Free].
type Pool struct {
	addr  uint64
	size  int
	bs    *BootServices
	freed bool
}

// AllocatePool calls EFI_BOOT_SERVICES.AllocatePool().
func (s *BootServices) AllocatePool(memoryType MemoryType, size int) (p *Pool, err error) {
	var addr uint64

	if err = s.valid(); err != nil {
		return
	}

	if size <= 0 {
		return nil, ErrInvalidParameter
	}

	status := s.call(allocatePool,
		uint64(memoryType),
		uint64(size),
		&addr,
	)

	if err = parseStatus(status); err != nil {
		return
	}

	p = &Pool{
		addr: addr,
		size: size,
		bs:   s,
	}

	return
}

// Address returns the buffer address.
func (p *Pool) Address() uint64 {
	return p.addr
}

// Len returns the buffer size.
func (p *Pool) Len() int {
	return p.size
}

// Bytes returns the allocated memory.
func (p *Pool) Bytes() ([]byte, error) {
	if p.freed {
		return nil, fmt.Errorf("pool %#x already freed", p.addr)
	}

	if err := p.bs.valid(); err != nil {
		return nil, err
	}

	return p.bs.fw.Memory(p.addr, p.size)
}

// Free calls EFI_BOOT_SERVICES.FreePool() to release the buffer, the instance
// must not be used afterwards and freeing it twice panics.
func (p *Pool) Free() (err error) {
	if p.freed {
		panic(fmt.Sprintf("double free of pool %#x", p.addr))
	}

	if err = p.bs.valid(); err != nil {
		return
	}

	status := p.bs.call(freePool, p.addr)

	if err = parseStatus(status); err != nil {
		return
	}

	p.freed = true

	return
}
