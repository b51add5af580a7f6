// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"fmt"

	"github.com/u-root/u-root/pkg/boot/bzimage"
)

const (
	// EFI Boot Services offset for GetMemoryMap
	getMemoryMap = 0x38
	// initial memory map buffer size in descriptors
	mapEntries = 64
	// descriptors added to a resized memory map buffer, as allocating it
	// may split existing regions
	mapSlack = 2
)

// Advanced Configuration and Power Interface Specification (ACPI)
// Version 6.0 - Table 15-312 Address Range Types12
const AddressRangePersistentMemory = 7

// PageSize represents the EFI page size in bytes
const PageSize = 4096 // 4 KiB

// MemoryType represents an EFI_MEMORY_TYPE.
type MemoryType uint32

// EFI_MEMORY_TYPE
const (
	EfiReservedMemoryType MemoryType = iota
	EfiLoaderCode
	EfiLoaderData
	EfiBootServicesCode
	EfiBootServicesData
	EfiRuntimeServicesCode
	EfiRuntimeServicesData
	EfiConventionalMemory
	EfiUnusableMemory
	EfiACPIReclaimMemory
	EfiACPIMemoryNVS
	EfiMemoryMappedIO
	EfiMemoryMappedIOPortSpace
	EfiPalCode
	EfiPersistentMemory
	EfiUnacceptedMemoryType
	EfiMaxMemoryType
)

var memoryTypeNames = []string{
	"Reserved",
	"LoaderCode",
	"LoaderData",
	"BootServicesCode",
	"BootServicesData",
	"RuntimeServicesCode",
	"RuntimeServicesData",
	"Conventional",
	"Unusable",
	"ACPIReclaim",
	"ACPIMemoryNVS",
	"MemoryMappedIO",
	"MemoryMappedIOPortSpace",
	"PalCode",
	"Persistent",
	"Unaccepted",
}

// String returns the memory type name.
func (t MemoryType) String() string {
	if int(t) < len(memoryTypeNames) {
		return memoryTypeNames[t]
	}

	return fmt.Sprintf("%#x", uint32(t))
}

// EFI Memory Attributes
const (
	EFI_MEMORY_UC            = 0x0000000000000001
	EFI_MEMORY_WC            = 0x0000000000000002
	EFI_MEMORY_WT            = 0x0000000000000004
	EFI_MEMORY_WB            = 0x0000000000000008
	EFI_MEMORY_UCE           = 0x0000000000000010
	EFI_MEMORY_WP            = 0x0000000000001000
	EFI_MEMORY_RP            = 0x0000000000002000
	EFI_MEMORY_XP            = 0x0000000000004000
	EFI_MEMORY_NV            = 0x0000000000008000
	EFI_MEMORY_MORE_RELIABLE = 0x0000000000010000
	EFI_MEMORY_RO            = 0x0000000000020000
	EFI_MEMORY_SP            = 0x0000000000040000
	EFI_MEMORY_CPU_CRYPTO    = 0x0000000000080000
	EFI_MEMORY_RUNTIME       = 0x8000000000000000
)

// MemoryDescriptor represents an EFI Memory Descriptor
type MemoryDescriptor struct {
	Type          MemoryType
	_             uint32
	PhysicalStart uint64
	VirtualStart  uint64
	NumberOfPages uint64
	Attribute     uint64
}

// descriptorSize is the size of the descriptor fields defined by the UEFI
// specification, firmware might report a larger stride.
var descriptorSize = binary.Size(&MemoryDescriptor{})

// PhysicalEnd returns the descriptor physical end address.
func (d *MemoryDescriptor) PhysicalEnd() uint64 {
	return d.PhysicalStart + d.NumberOfPages*PageSize
}

// Size returns the descriptor size.
func (d *MemoryDescriptor) Size() int {
	return int(d.NumberOfPages * PageSize)
}

// E820 converts an EFI Memory Map entry to an x86 E820 one suitable for use
// after exiting EFI Boot Services.
func (d *MemoryDescriptor) E820() (bzimage.E820Entry, error) {
	e := bzimage.E820Entry{
		Addr: d.PhysicalStart,
		Size: d.NumberOfPages * PageSize,
	}

	// Unified Extensible Firmware Interface (UEFI) Specification
	// Version 2.10 - Table 7.10: Memory Type Usage after ExitBootServices()
	switch d.Type {
	case EfiLoaderCode, EfiLoaderData, EfiBootServicesCode, EfiBootServicesData, EfiConventionalMemory:
		e.MemType = bzimage.RAM
	case EfiPersistentMemory:
		e.MemType = AddressRangePersistentMemory
	case EfiACPIReclaimMemory:
		e.MemType = bzimage.ACPI
	case EfiACPIMemoryNVS:
		e.MemType = bzimage.NVS
	default:
		e.MemType = bzimage.Reserved
	}

	return e, nil
}

// MemoryMap represents an EFI Memory Map
type MemoryMap struct {
	MapSize           uint64
	Descriptors       []*MemoryDescriptor
	MapKey            uint64
	DescriptorSize    uint64
	DescriptorVersion uint32
}

// Pages returns the total number of pages described by the memory map.
func (m *MemoryMap) Pages() (n uint64) {
	for _, d := range m.Descriptors {
		n += d.NumberOfPages
	}

	return
}

// E820 converts the EFI Memory Map to an x86 E820 one.
func (m *MemoryMap) E820() (entries []bzimage.E820Entry, err error) {
	for _, d := range m.Descriptors {
		e, err := d.E820()

		if err != nil {
			return nil, err
		}

		entries = append(entries, e)
	}

	return
}

// GetMemoryMap calls EFI_BOOT_SERVICES.GetMemoryMap().
//
// The map buffer is resized once if the firmware reports it as too small.
// Descriptors are decoded using the firmware reported descriptor size as
// stride.
func (s *BootServices) GetMemoryMap() (m *MemoryMap, err error) {
	var status uint64

	if err = s.valid(); err != nil {
		return
	}

	m = &MemoryMap{
		MapSize: uint64(descriptorSize * mapEntries),
	}

	for i := 0; i < 2; i++ {
		buf := make([]byte, m.MapSize)

		status = s.call(getMemoryMap,
			&m.MapSize,
			buf,
			&m.MapKey,
			&m.DescriptorSize,
			&m.DescriptorVersion,
		)

		if Status(status) == EFI_BUFFER_TOO_SMALL && m.MapSize > uint64(len(buf)) {
			m.MapSize += mapSlack * max(m.DescriptorSize, uint64(descriptorSize))
			continue
		}

		if err = parseStatus(status); err != nil {
			return nil, err
		}

		if err = m.decode(buf); err != nil {
			return nil, err
		}

		return
	}

	return nil, parseStatus(status)
}

func (m *MemoryMap) decode(buf []byte) (err error) {
	stride := m.DescriptorSize

	if stride < uint64(descriptorSize) {
		return fmt.Errorf("invalid descriptor size (%d)", stride)
	}

	if m.MapSize > uint64(len(buf)) {
		return ErrBadBufferSize
	}

	for off := uint64(0); off+stride <= m.MapSize; off += stride {
		d := &MemoryDescriptor{}

		if err = unmarshalBinary(buf[off:off+stride], d); err != nil {
			return
		}

		m.Descriptors = append(m.Descriptors, d)
	}

	return
}
