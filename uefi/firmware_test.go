// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"fmt"
	"sync"
	"testing"
)

// test firmware memory layout
const (
	testImageHandle  = 0x0a
	testSystemTable  = 0x1000
	testBootBase     = 0x2000
	testRuntimeBase  = 0x3000
	testConOut       = 0x4000
	testConIn        = 0x4100
	testVendor       = 0x5000
	testConfigTables = 0x6000
)

type handler func(args []any) Status

// testFirmware is a scripted firmware binding, services are dispatched on
// their function pointer address and serialized as on real firmware.
type testFirmware struct {
	sync.Mutex

	regions  map[uint64][]byte
	handlers map[uint64]handler
	calls    map[uint64]int
}

func newTestFirmware() *testFirmware {
	return &testFirmware{
		regions:  make(map[uint64][]byte),
		handlers: make(map[uint64]handler),
		calls:    make(map[uint64]int),
	}
}

func (fw *testFirmware) Call(fn uint64, args ...any) uint64 {
	fw.Lock()
	defer fw.Unlock()

	fw.calls[fn]++

	h, ok := fw.handlers[fn]

	if !ok {
		return uint64(EFI_UNSUPPORTED)
	}

	return uint64(h(args))
}

func (fw *testFirmware) Memory(addr uint64, size int) ([]byte, error) {
	for base, buf := range fw.regions {
		if addr >= base && addr+uint64(size) <= base+uint64(len(buf)) {
			off := addr - base
			return buf[off : off+uint64(size)], nil
		}
	}

	return nil, fmt.Errorf("invalid memory access %#x+%d", addr, size)
}

// store places a structure in firmware memory.
func (fw *testFirmware) store(addr uint64, data any) {
	buf, err := marshalBinary(data)

	if err != nil {
		panic(err)
	}

	fw.regions[addr] = buf
}

func (fw *testFirmware) boot(offset uint64, h handler) {
	fw.handlers[testBootBase+offset] = h
}

func (fw *testFirmware) runtime(offset uint64, h handler) {
	fw.handlers[testRuntimeBase+offset] = h
}

func (fw *testFirmware) bootCalls(offset uint64) int {
	return fw.calls[testBootBase+offset]
}

func put64(arg any, val uint64) {
	*arg.(*uint64) = val
}

func put32(arg any, val uint32) {
	*arg.(*uint32) = val
}

func newTestServices(t *testing.T) (*Services, *testFirmware) {
	fw := newTestFirmware()

	fw.store(testSystemTable, &SystemTable{
		Header: TableHeader{
			Signature: signature,
			Revision:  2<<16 | 100,
		},
		FirmwareVendor:       testVendor,
		ConIn:                testConIn,
		ConOut:               testConOut,
		RuntimeServices:      testRuntimeBase,
		BootServices:         testBootBase,
		NumberOfTableEntries: 2,
		ConfigurationTable:   testConfigTables,
	})

	fw.store(testBootBase, &TableHeader{Signature: bootSignature})
	fw.store(testRuntimeBase, &TableHeader{Signature: runtimeSignature})

	fw.regions[testVendor] = toUTF16("go-uefi")

	fw.store(testConfigTables, []ConfigurationTable{
		{GUID: ACPI_20_TABLE_GUID, VendorTable: 0xe0000},
		{GUID: SMBIOS3_TABLE_GUID, VendorTable: 0xf0000},
	})

	s := &Services{}

	if err := s.Init(fw, testImageHandle, testSystemTable); err != nil {
		t.Fatal(err)
	}

	return s, fw
}

// memoryMap scripts GetMemoryMap() to report n descriptors of the argument
// size, the map key is incremented on every invocation.
func (fw *testFirmware) memoryMap(n int, descSize uint64) {
	var key uint64

	fw.boot(getMemoryMap, func(args []any) Status {
		size := args[0].(*uint64)
		buf := args[1].([]byte)

		key++

		put64(args[3], descSize)
		put32(args[4], 1)

		if *size < uint64(n)*descSize {
			*size = uint64(n) * descSize
			return EFI_BUFFER_TOO_SMALL
		}

		*size = uint64(n) * descSize
		put64(args[2], key)

		for i := 0; i < n; i++ {
			off := uint64(i) * descSize
			binary.LittleEndian.PutUint32(buf[off:], uint32(EfiConventionalMemory))
			binary.LittleEndian.PutUint64(buf[off+8:], uint64(i)*0x10000)
			binary.LittleEndian.PutUint64(buf[off+24:], 0x10)
		}

		return EFI_SUCCESS
	})
}

func TestInit(t *testing.T) {
	s, _ := newTestServices(t)

	if s.Phase() != BootPhase {
		t.Fatalf("unexpected phase %s", s.Phase())
	}

	if s.ImageHandle() != testImageHandle || s.Address() != testSystemTable {
		t.Fatal("unexpected image handle or system table address")
	}

	if s.SystemTable.Header.Major() != 2 || s.SystemTable.Header.Minor() != 100 {
		t.Fatal("unexpected revision")
	}

	vendor, err := s.FirmwareVendor()

	if err != nil {
		t.Fatal(err)
	}

	if vendor != "go-uefi" {
		t.Fatalf("unexpected vendor %q", vendor)
	}

	if _, err := s.BootServices(); err != nil {
		t.Fatal(err)
	}

	if err = s.CheckRevision(); err != nil {
		t.Fatal(err)
	}
}

func TestZeroServices(t *testing.T) {
	s := &Services{}

	if s.Phase() != BootPhase {
		t.Fatalf("unexpected phase %s", s.Phase())
	}

	if _, err := s.BootServices(); err != ErrUnsupported {
		t.Fatalf("unexpected error %v", err)
	}

	if err := s.CheckRevision(); err == nil {
		t.Fatal("revision check without system table")
	}
}

func TestCheckRevision(t *testing.T) {
	s, _ := newTestServices(t)

	s.SystemTable.Header.Revision = 2<<16 | 20

	if err := s.CheckRevision(); err == nil {
		t.Fatal("revision 2.20 accepted")
	}

	s.SystemTable.Header.Revision = MinimumRevision

	if err := s.CheckRevision(); err != nil {
		t.Fatal(err)
	}
}

func TestFirmwareVendorLong(t *testing.T) {
	s, fw := newTestServices(t)

	vendor := "Go UEFI Reference Firmware Vendor Name (Long)"
	fw.regions[testVendor] = toUTF16(vendor)

	v, err := s.FirmwareVendor()

	if err != nil {
		t.Fatal(err)
	}

	if v != vendor {
		t.Fatalf("unexpected vendor %q", v)
	}

	// missing terminator
	fw.regions[testVendor] = []byte{'g', 0x00, 'o', 0x00}

	if _, err = s.FirmwareVendor(); err == nil {
		t.Fatal("unterminated vendor string accepted")
	}
}

func TestInitInvalidSignature(t *testing.T) {
	fw := newTestFirmware()

	fw.store(testSystemTable, &SystemTable{
		Header:          TableHeader{Signature: signature},
		RuntimeServices: testRuntimeBase,
		BootServices:    testBootBase,
	})

	fw.store(testBootBase, &TableHeader{Signature: runtimeSignature})
	fw.store(testRuntimeBase, &TableHeader{Signature: runtimeSignature})

	if err := (&Services{}).Init(fw, testImageHandle, testSystemTable); err == nil {
		t.Fatal("invalid Boot Services signature not detected")
	}

	fw.store(testSystemTable, &SystemTable{})

	if err := (&Services{}).Init(fw, testImageHandle, testSystemTable); err == nil {
		t.Fatal("invalid System Table signature not detected")
	}
}

func TestInitNilSystemTable(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("nil System Table did not panic")
		}
	}()

	_ = (&Services{}).Init(newTestFirmware(), testImageHandle, 0)
}

func TestInitNilFirmware(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("nil firmware did not panic")
		}
	}()

	_ = (&Services{}).Init(nil, testImageHandle, testSystemTable)
}

func TestConfigurationTables(t *testing.T) {
	s, _ := newTestServices(t)

	tables, err := s.ConfigurationTables()

	if err != nil {
		t.Fatal(err)
	}

	if len(tables) != 2 {
		t.Fatalf("unexpected number of tables (%d)", len(tables))
	}

	c, err := s.LocateConfiguration(SMBIOS3_TABLE_GUID)

	if err != nil {
		t.Fatal(err)
	}

	if c.VendorTable != 0xf0000 {
		t.Fatalf("unexpected vendor table %#x", c.VendorTable)
	}

	if _, err = s.LocateConfiguration(SMBIOS_TABLE_GUID); err != ErrNotFound {
		t.Fatalf("unexpected error %v", err)
	}
}
