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
	allocatePages = 0x28
	freePages     = 0x30
)

// AllocateType represents an EFI_ALLOCATE_TYPE.
type AllocateType int

// EFI_ALLOCATE_TYPE
const (
	AllocateAnyPages AllocateType = iota
	AllocateMaxAddress
	AllocateAddress
	MaxAllocateType
)

// Pages represents a range of EFI pages obtained from AllocatePages, the range
// is owned by the caller until released with [Pages.Free].
type Pages struct {
	addr  uint64
	pages int
	bs    *BootServices
	freed bool
}

// AllocatePages calls EFI_BOOT_SERVICES.AllocatePages().
//
// The address argument is ignored with AllocateAnyPages, it represents the
// maximum address with AllocateMaxAddress and the exact page aligned
// address with AllocateAddress.
func (s *BootServices) AllocatePages(allocateType AllocateType, memoryType MemoryType, pages int, address uint64) (p *Pages, err error) {
	if err = s.valid(); err != nil {
		return
	}

	if pages <= 0 || allocateType < 0 || allocateType >= MaxAllocateType {
		return nil, ErrInvalidParameter
	}

	switch allocateType {
	case AllocateAnyPages:
		address = 0
	case AllocateAddress:
		if address%PageSize != 0 {
			return nil, ErrInvalidParameter
		}
	}

	status := s.call(allocatePages,
		uint64(allocateType),
		uint64(memoryType),
		uint64(pages),
		&address,
	)

	if err = parseStatus(status); err != nil {
		return
	}

	p = &Pages{
		addr:  address,
		pages: pages,
		bs:    s,
	}

	return
}

// Address returns the physical address of the first page.
func (p *Pages) Address() uint64 {
	return p.addr
}

// Pages returns the number of allocated pages.
func (p *Pages) Pages() int {
	return p.pages
}

// Len returns the allocation size in bytes.
func (p *Pages) Len() int {
	return p.pages * PageSize
}

// Bytes returns the allocated memory.
func (p *Pages) Bytes() ([]byte, error) {
	if p.freed {
		return nil, fmt.Errorf("pages %#x already freed", p.addr)
	}

	if err := p.bs.valid(); err != nil {
		return nil, err
	}

	return p.bs.fw.Memory(p.addr, p.Len())
}

// Free calls EFI_BOOT_SERVICES.FreePages() to release the allocation, the
// instance must not be used afterwards and freeing it twice panics.
func (p *Pages) Free() (err error) {
	if p.freed {
		panic(fmt.Sprintf("double free of pages %#x", p.addr))
	}

	if err = p.bs.valid(); err != nil {
		return
	}

	status := p.bs.call(freePages,
		p.addr,
		uint64(p.pages),
	)

	if err = parseStatus(status); err != nil {
		return
	}

	p.freed = true

	return
}
