// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/usbarmory/go-uefi/shell"
	"github.com/usbarmory/go-uefi/uefi"
)

// test firmware memory layout
const (
	testSystemTable = 0x1000
	testBootBase    = 0x2000
	testRuntimeBase = 0x3000

	getMemoryMap     = 0x38
	exitBootServices = 0xe8

	descriptorSize = 48
)

// testFirmware reports a fixed memory map of conventional memory and accepts
// ExitBootServices() with the latest map key.
type testFirmware struct {
	regions map[uint64][]byte
	key     uint64
	exited  bool
}

func newTestFirmware() *testFirmware {
	fw := &testFirmware{
		regions: make(map[uint64][]byte),
	}

	fw.store(testSystemTable, &uefi.SystemTable{
		Header: uefi.TableHeader{
			Signature: 0x5453595320494249,
			Revision:  2<<16 | 70,
		},
		RuntimeServices: testRuntimeBase,
		BootServices:    testBootBase,
	})

	fw.store(testBootBase, &uefi.TableHeader{Signature: 0x56524553544f4f42})
	fw.store(testRuntimeBase, &uefi.TableHeader{Signature: 0x56524553544e5552})

	return fw
}

func (fw *testFirmware) store(addr uint64, data any) {
	buf := new(bytes.Buffer)

	if err := binary.Write(buf, binary.LittleEndian, data); err != nil {
		panic(err)
	}

	fw.regions[addr] = buf.Bytes()
}

func (fw *testFirmware) Call(fn uint64, args ...any) uint64 {
	switch fn {
	case testBootBase + getMemoryMap:
		size := args[0].(*uint64)
		buf := args[1].([]byte)

		*args[3].(*uint64) = descriptorSize
		*args[4].(*uint32) = 1

		if *size < 2*descriptorSize {
			*size = 2 * descriptorSize
			return uint64(uefi.EFI_BUFFER_TOO_SMALL)
		}

		fw.key++
		*size = 2 * descriptorSize
		*args[2].(*uint64) = fw.key

		for i := 0; i < 2; i++ {
			off := i * descriptorSize
			binary.LittleEndian.PutUint32(buf[off:], uint32(uefi.EfiConventionalMemory))
			binary.LittleEndian.PutUint64(buf[off+8:], uint64(i+1)*0x100000)
			binary.LittleEndian.PutUint64(buf[off+24:], 0x100)
		}

		return uint64(uefi.EFI_SUCCESS)
	case testBootBase + exitBootServices:
		if args[1].(uint64) != fw.key {
			return uint64(uefi.EFI_INVALID_PARAMETER)
		}

		fw.exited = true

		return uint64(uefi.EFI_SUCCESS)
	}

	return uint64(uefi.EFI_UNSUPPORTED)
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

func newTestInterface(t *testing.T) (*shell.Interface, *testFirmware) {
	fw := newTestFirmware()
	s := &uefi.Services{}

	if err := s.Init(fw, 0x0a, testSystemTable); err != nil {
		t.Fatal(err)
	}

	return &shell.Interface{UEFI: s}, fw
}

func TestMemoryMapCmd(t *testing.T) {
	iface, _ := newTestInterface(t)

	res, err := memmapCmd(iface, nil)

	if err != nil {
		t.Fatal(err)
	}

	if n := strings.Count(res, "Conventional"); n != 2 {
		t.Fatalf("unexpected descriptor count %d\n%s", n, res)
	}

	if !strings.Contains(res, "Total: 2.0 MiB") {
		t.Fatalf("unexpected total\n%s", res)
	}
}

func TestE820Cmd(t *testing.T) {
	iface, _ := newTestInterface(t)

	res, err := e820Cmd(iface, nil)

	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(res, "0000000000100000 00000000001fffff 1") {
		t.Fatalf("unexpected E820 map\n%s", res)
	}
}

func TestExitBootServicesCmd(t *testing.T) {
	iface, fw := newTestInterface(t)

	res, err := exitBootServicesCmd(iface, nil)

	if err != nil {
		t.Fatal(err)
	}

	if !fw.exited || !strings.Contains(res, "2 descriptors") {
		t.Fatalf("unexpected result %q", res)
	}

	if iface.UEFI.Phase() != uefi.RuntimePhase {
		t.Fatalf("unexpected phase %s", iface.UEFI.Phase())
	}

	if _, err = memmapCmd(iface, nil); err == nil {
		t.Fatal("EFI Boot Services still available after exit")
	}
}

func TestNoServices(t *testing.T) {
	if _, err := memmapCmd(&shell.Interface{}, nil); err == nil {
		t.Fatal("expected error without EFI services")
	}
}

func TestExitBootServicesRelease(t *testing.T) {
	iface, fw := newTestInterface(t)

	released := 0

	defer func(hooks []func() error) {
		exitHooks = hooks
	}(exitHooks)

	exitHooks = []func() error{
		func() error {
			released++
			return errors.New("device busy")
		},
	}

	if _, err := exitBootServicesCmd(iface, nil); err == nil {
		t.Fatal("exit with unreleased resources")
	}

	if fw.exited || iface.UEFI.Phase() != uefi.BootPhase {
		t.Fatal("EFI Boot Services exited")
	}

	exitHooks[0] = func() error {
		released++
		return nil
	}

	if _, err := exitBootServicesCmd(iface, nil); err != nil {
		t.Fatal(err)
	}

	if released != 2 || !fw.exited {
		t.Fatalf("unexpected state (released %d, exited %v)", released, fw.exited)
	}
}
