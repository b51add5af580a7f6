// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// EFI Boot Services offsets
const (
	locateProtocol = 0x140
	openProtocol   = 0x118
	closeProtocol  = 0x120
)

// EFI_OPEN_PROTOCOL attributes
const (
	EFI_OPEN_PROTOCOL_BY_HANDLE_PROTOCOL  = 0x01
	EFI_OPEN_PROTOCOL_GET_PROTOCOL        = 0x02
	EFI_OPEN_PROTOCOL_TEST_PROTOCOL       = 0x04
	EFI_OPEN_PROTOCOL_BY_CHILD_CONTROLLER = 0x08
	EFI_OPEN_PROTOCOL_BY_DRIVER           = 0x10
	EFI_OPEN_PROTOCOL_EXCLUSIVE           = 0x20
)

const exclusiveAttributes = EFI_OPEN_PROTOCOL_BY_DRIVER | EFI_OPEN_PROTOCOL_EXCLUSIVE

// Protocol is the constraint satisfied by pointers to types representing an
// EFI protocol interface.
type Protocol[T any] interface {
	*T

	// GUID returns the protocol identifier, it must not depend on the
	// receiver state.
	GUID() GUID

	// Bind associates the protocol instance with its firmware interface.
	Bind(iface *Interface) error
}

// binding represents the state shared between a capability and its
// interface.
type binding struct {
	guard      *guard
	handle     Handle
	guid       GUID
	attributes uint32
	opened     bool
	closed     bool
}

func (b *binding) valid() bool {
	return !b.closed && b.guard.Phase() == BootPhase
}

func (b *binding) check() {
	if b.closed {
		panic(fmt.Sprintf("use of closed protocol capability %s", b.guid))
	}

	if b.guard.Phase() != BootPhase {
		b.expired()
	}
}

func (b *binding) expired() {
	panic(fmt.Sprintf("use of protocol capability %s after ExitBootServices", b.guid))
}

// Interface represents the firmware owned structure of a protocol interface
// bound to a capability, it can only be used while the capability is open
// and EFI Boot Services have not been exited.
type Interface struct {
	fw   Firmware
	addr uint64
	b    *binding

	last atomic.Uint64
}

// Address returns the protocol interface structure address.
func (i *Interface) Address() uint64 {
	i.b.check()
	return i.addr
}

// Call invokes the protocol interface function found at the argument offset.
// Warnings are returned as status with a nil error.
func (i *Interface) Call(offset uint64, args ...any) (status Status, err error) {
	i.b.check()

	err = i.b.guard.do(func() {
		status = Status(i.fw.Call(i.addr+offset, args...))
	})

	if err != nil {
		i.b.expired()
	}

	i.last.Store(uint64(status))

	return status, status.Err()
}

// LastStatus returns the status of the last protocol interface call.
func (i *Interface) LastStatus() Status {
	return Status(i.last.Load())
}

// Decode reads the protocol interface structure.
func (i *Interface) Decode(data any) error {
	return i.Read(i.addr, data)
}

// Read reads a firmware structure referenced by the protocol interface.
func (i *Interface) Read(addr uint64, data any) error {
	i.b.check()
	return decode(i.fw, addr, data)
}

// Memory returns a view of firmware memory referenced by the protocol
// interface.
func (i *Interface) Memory(addr uint64, size int) ([]byte, error) {
	i.b.check()
	return i.fw.Memory(addr, size)
}

// Capability represents a protocol interface of type T installed on a
// handle, it remains usable until closed or until EFI Boot Services are
// exited.
type Capability[T any] struct {
	proto *T
	iface *Interface
	bs    *BootServices
}

// Handle returns the handle on which the protocol is installed, zero for
// capabilities obtained through [LocateProtocol].
func (c *Capability[T]) Handle() Handle {
	return c.iface.b.handle
}

// GUID returns the protocol identifier.
func (c *Capability[T]) GUID() GUID {
	return c.iface.b.guid
}

// Valid reports whether the capability can still be used.
func (c *Capability[T]) Valid() bool {
	return c.iface.b.valid()
}

// Protocol returns the protocol instance, it panics if the capability has
// been closed or EFI Boot Services have been exited.
func (c *Capability[T]) Protocol() *T {
	c.iface.b.check()
	return c.proto
}

// Close releases the capability. For capabilities obtained with
// [OpenProtocol] it calls EFI_BOOT_SERVICES.CloseProtocol(), closing an
// already closed capability has no effect.
func (c *Capability[T]) Close() (err error) {
	b := c.iface.b

	if b.closed {
		return
	}

	if !b.opened {
		b.closed = true
		return
	}

	if err = c.bs.closeProtocol(b.handle, b.guid); err != nil {
		return
	}

	b.closed = true
	c.bs.guard.untrack(b)

	return
}

func (s *BootServices) closeProtocol(handle Handle, guid GUID) (err error) {
	if err = s.valid(); err != nil {
		return
	}

	status := s.call(closeProtocol,
		uint64(handle),
		&guid,
		uint64(s.imageHandle),
		uint64(0),
	)

	return parseStatus(status)
}

func bind[T any, P Protocol[T]](s *BootServices, b *binding, addr uint64) (c *Capability[T], err error) {
	if addr == 0 {
		return nil, fmt.Errorf("protocol %s interface is nil", b.guid)
	}

	c = &Capability[T]{
		proto: new(T),
		bs:    s,
		iface: &Interface{
			fw:   s.fw,
			addr: addr,
			b:    b,
		},
	}

	if err = P(c.proto).Bind(c.iface); err != nil {
		return nil, fmt.Errorf("could not bind protocol %s, %w", b.guid, err)
	}

	return
}

// OpenProtocol calls EFI_BOOT_SERVICES.OpenProtocol() to open protocol T on
// the argument handle, using the image handle as agent.
//
// Exclusive attributes (EFI_OPEN_PROTOCOL_BY_DRIVER,
// EFI_OPEN_PROTOCOL_EXCLUSIVE) fail with [ErrAccessDenied] when another
// capability already holds the protocol exclusively. Every capability
// returned by this function must be closed before EFI Boot Services are
// exited.
func OpenProtocol[T any, P Protocol[T]](s *BootServices, handle Handle, attributes uint32) (c *Capability[T], err error) {
	var addr uint64

	if err = s.valid(); err != nil {
		return
	}

	if attributes&EFI_OPEN_PROTOCOL_TEST_PROTOCOL != 0 || attributes == 0 {
		return nil, ErrInvalidParameter
	}

	b := &binding{
		guard:      s.guard,
		handle:     handle,
		guid:       P(new(T)).GUID(),
		attributes: attributes,
		opened:     true,
	}

	if attributes&exclusiveAttributes != 0 && s.guard.exclusive(handle, b.guid) {
		return nil, ErrAccessDenied
	}

	// tracking happens within the call so that ExitBootServices() either
	// precedes the open or observes it
	if e := s.guard.do(func() {
		status := s.fw.Call(s.base+openProtocol,
			uint64(handle),
			&b.guid,
			&addr,
			uint64(s.imageHandle),
			uint64(0),
			uint64(attributes),
		)

		s.last.Store(status)

		if err = parseStatus(status); err == nil {
			s.guard.track(b)
		}
	}); e != nil {
		return nil, e
	}

	if err != nil {
		return
	}

	if c, err = bind[T, P](s, b, addr); err != nil {
		// release the firmware claim taken above
		if e := s.closeProtocol(handle, b.guid); e != nil {
			err = errors.Join(err, e)
		}

		s.guard.untrack(b)

		return nil, err
	}

	return
}

// LocateProtocol calls EFI_BOOT_SERVICES.LocateProtocol() to return the
// first instance of protocol T.
func LocateProtocol[T any, P Protocol[T]](s *BootServices) (c *Capability[T], err error) {
	var addr uint64

	if err = s.valid(); err != nil {
		return
	}

	b := &binding{
		guard: s.guard,
		guid:  P(new(T)).GUID(),
	}

	status := s.call(locateProtocol,
		&b.guid,
		uint64(0),
		&addr,
	)

	if err = parseStatus(status); err != nil {
		return
	}

	return bind[T, P](s, b, addr)
}
