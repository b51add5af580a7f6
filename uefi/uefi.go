// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package uefi implements a driver for the Unified Extensible Firmware
// Interface (UEFI) following the specifications at:
//
//	https://uefi.org/specs/UEFI/2.10/
//
// Firmware services are reached through a [Firmware] binding, the native
// one being only available with `GOOS=tamago` as supported by the TamaGo
// framework for bare metal Go, see https://github.com/usbarmory/tamago.
//
// Boot Services are valid only until [BootServices.ExitBootServices]
// succeeds, after which every Boot Services operation fails with
// [ErrUnsupported] and protocol capabilities can no longer be used.
package uefi

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// EFI Table Header signatures
const (
	signature        = 0x5453595320494249 // TSYS IBI
	bootSignature    = 0x56524553544f4f42 // VRES TOOB
	runtimeSignature = 0x56524553544e5552 // VRES TNUR
)

// Firmware represents the primitives required to invoke EFI services.
type Firmware interface {
	// Call invokes the function pointer stored at address fn, arguments
	// are either uint64 values or pointers to Go memory (*uint64,
	// *uint32, *uint16, *byte, *GUID, []byte) which the firmware is
	// allowed to read and write for the duration of the call.
	Call(fn uint64, args ...any) (status uint64)

	// Memory returns the firmware owned memory at the argument address.
	Memory(addr uint64, size int) ([]byte, error)
}

// TableHeader represents the data structure that precedes all of the standard
// EFI table types.
type TableHeader struct {
	Signature  uint64
	Revision   uint32
	HeaderSize uint32
	CRC32      uint32
	Reserved   uint32
}

// Major returns the table major revision.
func (h *TableHeader) Major() int {
	return int(h.Revision >> 16)
}

// Minor returns the table minor revision (e.g. 70 for 2.7, 100 for 2.10).
func (h *TableHeader) Minor() int {
	return int(h.Revision & 0xffff)
}

// SystemTable represents the EFI System Table, containing pointers to the
// runtime and boot services tables.
type SystemTable struct {
	Header               TableHeader
	FirmwareVendor       uint64
	FirmwareRevision     uint32
	_                    uint32
	ConsoleInHandle      uint64
	ConIn                uint64
	ConsoleOutHandle     uint64
	ConOut               uint64
	StandardErrorHandle  uint64
	StdErr               uint64
	RuntimeServices      uint64
	BootServices         uint64
	NumberOfTableEntries uint64
	ConfigurationTable   uint64
}

// BootServices represents an EFI Boot Services instance.
type BootServices struct {
	fw          Firmware
	base        uint64
	imageHandle Handle
	guard       *guard
	runtime     *RuntimeServices

	last atomic.Uint64
}

// RuntimeServices represents an EFI Runtime Services instance.
type RuntimeServices struct {
	fw   Firmware
	base uint64

	last atomic.Uint64
}

// Services represents the UEFI services instance.
type Services struct {
	// EFI System Table instance
	SystemTable *SystemTable

	// UEFI services
	Console *Console
	Boot    *BootServices
	Runtime *RuntimeServices

	fw          Firmware
	imageHandle Handle
	systemTable uint64
	guard       *guard
}

func checkTable(fw Firmware, addr uint64, sig uint64, name string) (err error) {
	h := &TableHeader{}

	if err = decode(fw, addr, h); err != nil {
		return fmt.Errorf("could not read %s, %v", name, err)
	}

	if h.Signature != sig {
		return fmt.Errorf("%s pointer is invalid", name)
	}

	return
}

// Init initializes an UEFI services instance using the argument pointers, as
// passed by the firmware to the image entry point.
//
// A nil firmware binding or System Table pointer is a fatal condition and
// causes a panic.
func (s *Services) Init(fw Firmware, imageHandle uint64, systemTable uint64) (err error) {
	if fw == nil {
		panic("EFI firmware binding is nil")
	}

	if systemTable == 0 {
		panic("EFI System Table pointer is nil")
	}

	s.fw = fw
	s.imageHandle = Handle(imageHandle)
	s.systemTable = systemTable
	s.guard = &guard{}

	s.SystemTable = &SystemTable{}

	if err = decode(fw, systemTable, s.SystemTable); err != nil {
		return
	}

	if s.SystemTable.Header.Signature != signature {
		return errors.New("EFI System Table pointer is invalid")
	}

	if err = checkTable(fw, s.SystemTable.BootServices, bootSignature, "EFI Boot Services"); err != nil {
		return
	}

	if err = checkTable(fw, s.SystemTable.RuntimeServices, runtimeSignature, "EFI Runtime Services"); err != nil {
		return
	}

	s.Console = NewConsole(fw, s.SystemTable.ConIn, s.SystemTable.ConOut)
	s.Console.guard = s.guard

	s.Runtime = &RuntimeServices{
		fw:   fw,
		base: s.SystemTable.RuntimeServices,
	}

	s.Boot = &BootServices{
		fw:          fw,
		base:        s.SystemTable.BootServices,
		imageHandle: s.imageHandle,
		guard:       s.guard,
		runtime:     s.Runtime,
	}

	return
}

// ImageHandle returns the UEFI image handle.
func (s *Services) ImageHandle() Handle {
	return s.imageHandle
}

// Address returns the EFI System Table pointer.
func (s *Services) Address() uint64 {
	return s.systemTable
}

// Phase returns the current boot/runtime phase.
func (s *Services) Phase() Phase {
	if s.guard == nil {
		return BootPhase
	}

	return s.guard.Phase()
}

// BootServices returns the EFI Boot Services instance, [ErrUnsupported] is
// returned once EFI Boot Services have been exited.
func (s *Services) BootServices() (*BootServices, error) {
	if s.guard == nil || s.guard.Phase() != BootPhase || s.Boot == nil {
		return nil, ErrUnsupported
	}

	return s.Boot, nil
}

// MinimumRevision represents the oldest supported EFI System Table revision
// (2.30).
const MinimumRevision = 2<<16 | 30

// CheckRevision returns an error if the EFI System Table revision is older
// than [MinimumRevision].
func (s *Services) CheckRevision() error {
	if s.SystemTable == nil {
		return errors.New("EFI System Table is invalid")
	}

	if h := s.SystemTable.Header; h.Revision < MinimumRevision {
		return fmt.Errorf("unsupported UEFI revision %d.%d", h.Major(), h.Minor())
	}

	return nil
}

// FirmwareVendor returns the firmware vendor string.
func (s *Services) FirmwareVendor() (string, error) {
	t := s.SystemTable

	if t == nil || t.FirmwareVendor == 0 {
		return "", errors.New("EFI System Table is invalid")
	}

	return readUTF16(s.fw, t.FirmwareVendor)
}

// valid returns an error if EFI Boot Services can no longer be invoked.
func (s *BootServices) valid() error {
	if s == nil || s.guard == nil || s.guard.Phase() != BootPhase {
		return ErrUnsupported
	}

	return nil
}

// call invokes the EFI Boot Services function at the argument offset, the
// phase check and the call are atomic with respect to ExitBootServices().
// EFI_UNSUPPORTED is returned once EFI Boot Services have been exited.
func (s *BootServices) call(offset uint64, args ...any) (status uint64) {
	err := s.guard.do(func() {
		status = s.fw.Call(s.base+offset, args...)
	})

	if err != nil {
		return uint64(EFI_UNSUPPORTED)
	}

	s.last.Store(status)

	return
}

// LastStatus returns the status of the last EFI Boot Services call, it
// carries the warning reported by calls which succeeded with a nil error.
func (s *BootServices) LastStatus() Status {
	return Status(s.last.Load())
}

func (s *RuntimeServices) call(offset uint64, args ...any) (status uint64) {
	status = s.fw.Call(s.base+offset, args...)
	s.last.Store(status)

	return
}

// LastStatus returns the status of the last EFI Runtime Services call, it
// carries the warning reported by calls which succeeded with a nil error.
func (s *RuntimeServices) LastStatus() Status {
	return Status(s.last.Load())
}

// ImageHandle returns the UEFI image handle used as agent for protocol
// operations.
func (s *BootServices) ImageHandle() Handle {
	return s.imageHandle
}
