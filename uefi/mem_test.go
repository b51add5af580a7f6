// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"testing"

	"github.com/u-root/u-root/pkg/boot/bzimage"
)

func TestGetMemoryMap(t *testing.T) {
	s, fw := newTestServices(t)

	// larger than the initial buffer, with a stride exceeding the
	// descriptor size
	n := mapEntries + 36
	fw.memoryMap(n, 48)

	m, err := s.Boot.GetMemoryMap()

	if err != nil {
		t.Fatal(err)
	}

	if calls := fw.bootCalls(getMemoryMap); calls != 2 {
		t.Fatalf("unexpected GetMemoryMap() invocations (%d)", calls)
	}

	if len(m.Descriptors) != n {
		t.Fatalf("unexpected number of descriptors (%d)", len(m.Descriptors))
	}

	if m.DescriptorSize != 48 || m.DescriptorVersion != 1 {
		t.Fatal("unexpected descriptor size or version")
	}

	if pages := m.Pages(); pages < uint64(n)*0x10 {
		t.Fatalf("unexpected number of pages (%d)", pages)
	}

	for i, d := range m.Descriptors {
		if d.Type != EfiConventionalMemory || d.PhysicalStart != uint64(i)*0x10000 || d.NumberOfPages != 0x10 {
			t.Fatalf("unexpected descriptor %d (%+v)", i, d)
		}
	}

	if _, err = s.Boot.GetMemoryMap(); err != nil {
		t.Fatal(err)
	}
}

func TestGetMemoryMapInvalidDescriptorSize(t *testing.T) {
	s, fw := newTestServices(t)
	fw.memoryMap(4, 32)

	if _, err := s.Boot.GetMemoryMap(); err == nil {
		t.Fatal("invalid descriptor size not detected")
	}
}

func TestGetMemoryMapGrowing(t *testing.T) {
	s, fw := newTestServices(t)

	fw.boot(getMemoryMap, func(args []any) Status {
		size := args[0].(*uint64)
		*size += 0x1000
		return EFI_BUFFER_TOO_SMALL
	})

	if _, err := s.Boot.GetMemoryMap(); err != ErrBufferTooSmall {
		t.Fatalf("unexpected error %v", err)
	}

	if calls := fw.bootCalls(getMemoryMap); calls != 2 {
		t.Fatalf("unexpected GetMemoryMap() invocations (%d)", calls)
	}
}

func TestE820(t *testing.T) {
	m := &MemoryMap{
		Descriptors: []*MemoryDescriptor{
			{Type: EfiConventionalMemory, PhysicalStart: 0x100000, NumberOfPages: 2},
			{Type: EfiACPIReclaimMemory, PhysicalStart: 0x200000, NumberOfPages: 1},
			{Type: EfiACPIMemoryNVS, PhysicalStart: 0x300000, NumberOfPages: 1},
			{Type: EfiPersistentMemory, PhysicalStart: 0x400000, NumberOfPages: 1},
			{Type: EfiMemoryMappedIO, PhysicalStart: 0x500000, NumberOfPages: 1},
		},
	}

	entries, err := m.E820()

	if err != nil {
		t.Fatal(err)
	}

	expected := []bzimage.E820Entry{
		{Addr: 0x100000, Size: 0x2000, MemType: bzimage.RAM},
		{Addr: 0x200000, Size: 0x1000, MemType: bzimage.ACPI},
		{Addr: 0x300000, Size: 0x1000, MemType: bzimage.NVS},
		{Addr: 0x400000, Size: 0x1000, MemType: AddressRangePersistentMemory},
		{Addr: 0x500000, Size: 0x1000, MemType: bzimage.Reserved},
	}

	for i, e := range entries {
		if e != expected[i] {
			t.Fatalf("unexpected entry %d (%+v)", i, e)
		}
	}

	if d := m.Descriptors[0]; d.PhysicalEnd() != 0x102000 || d.Size() != 0x2000 {
		t.Fatal("unexpected descriptor range")
	}
}

func TestAllocatePages(t *testing.T) {
	s, fw := newTestServices(t)

	const addr = 0xa000

	fw.regions[addr] = make([]byte, 2*PageSize)

	fw.boot(allocatePages, func(args []any) Status {
		if args[0].(uint64) != uint64(AllocateAnyPages) || args[2].(uint64) != 2 {
			return EFI_INVALID_PARAMETER
		}

		put64(args[3], addr)

		return EFI_SUCCESS
	})

	fw.boot(freePages, func(args []any) Status {
		if args[0].(uint64) != addr || args[1].(uint64) != 2 {
			return EFI_NOT_FOUND
		}

		return EFI_SUCCESS
	})

	p, err := s.Boot.AllocatePages(AllocateAnyPages, EfiLoaderData, 2, 0xdead)

	if err != nil {
		t.Fatal(err)
	}

	if p.Address() != addr || p.Pages() != 2 || p.Len() != 2*PageSize {
		t.Fatal("unexpected allocation")
	}

	buf, err := p.Bytes()

	if err != nil {
		t.Fatal(err)
	}

	if len(buf) != p.Len() {
		t.Fatalf("unexpected buffer size (%d)", len(buf))
	}

	if err = p.Free(); err != nil {
		t.Fatal(err)
	}

	if _, err = p.Bytes(); err == nil {
		t.Fatal("freed pages are accessible")
	}

	mustPanic(t, "double free", func() { p.Free() })
}

func TestAllocatePagesInvalid(t *testing.T) {
	s, fw := newTestServices(t)

	fw.boot(allocatePages, func(args []any) Status {
		return EFI_SUCCESS
	})

	if _, err := s.Boot.AllocatePages(AllocateAddress, EfiLoaderData, 1, 0x1001); err != ErrInvalidParameter {
		t.Fatalf("unexpected error %v", err)
	}

	if _, err := s.Boot.AllocatePages(AllocateAnyPages, EfiLoaderData, 0, 0); err != ErrInvalidParameter {
		t.Fatalf("unexpected error %v", err)
	}

	if _, err := s.Boot.AllocatePages(MaxAllocateType, EfiLoaderData, 1, 0); err != ErrInvalidParameter {
		t.Fatalf("unexpected error %v", err)
	}

	if calls := fw.bootCalls(allocatePages); calls != 0 {
		t.Fatal("invalid allocation reached the firmware")
	}
}

func TestAllocatePool(t *testing.T) {
	s, fw := newTestServices(t)

	const addr = 0xb000

	fw.regions[addr] = make([]byte, 64)

	fw.boot(allocatePool, func(args []any) Status {
		if args[0].(uint64) != uint64(EfiBootServicesData) {
			return EFI_INVALID_PARAMETER
		}

		put64(args[2], addr)

		return EFI_SUCCESS
	})

	fw.boot(freePool, func(args []any) Status {
		return EFI_SUCCESS
	})

	p, err := s.Boot.AllocatePool(EfiBootServicesData, 64)

	if err != nil {
		t.Fatal(err)
	}

	buf, err := p.Bytes()

	if err != nil {
		t.Fatal(err)
	}

	buf[0] = 0xaa

	if fw.regions[addr][0] != 0xaa {
		t.Fatal("pool buffer does not alias firmware memory")
	}

	if err = p.Free(); err != nil {
		t.Fatal(err)
	}

	mustPanic(t, "double free", func() { p.Free() })
}

func TestMemoryType(t *testing.T) {
	if s := EfiRuntimeServicesData.String(); s != "RuntimeServicesData" {
		t.Fatalf("unexpected name %s", s)
	}

	if s := MemoryType(0x80000000).String(); s != "0x80000000" {
		t.Fatalf("unexpected name %s", s)
	}
}

func TestAllocatePoolWarning(t *testing.T) {
	s, fw := newTestServices(t)

	fw.boot(allocatePool, func(args []any) Status {
		put64(args[2], 0xb000)
		return EFI_WARN_STALE_DATA
	})

	if _, err := s.Boot.AllocatePool(EfiLoaderData, 16); err != nil {
		t.Fatal(err)
	}

	if status := s.Boot.LastStatus(); status != EFI_WARN_STALE_DATA {
		t.Fatalf("unexpected status %s", status)
	}

	fw.boot(allocatePool, func(args []any) Status {
		put64(args[2], 0xb000)
		return EFI_SUCCESS
	})

	if _, err := s.Boot.AllocatePool(EfiLoaderData, 16); err != nil {
		t.Fatal(err)
	}

	if status := s.Boot.LastStatus(); status != EFI_SUCCESS {
		t.Fatalf("unexpected status %s", status)
	}
}
