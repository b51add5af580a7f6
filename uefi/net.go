// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
)

var EFI_SIMPLE_NETWORK_PROTOCOL_GUID = MustParseGUID("a19832b9-ac25-11d3-9a2d-0090273fc14d")

const (
	EFI_SIMPLE_NETWORK_PROTOCOL_REVISION = 0x00010000

	EFI_SIMPLE_NETWORK_RECEIVE_INTERRUPT  = 0x01
	EFI_SIMPLE_NETWORK_TRANSMIT_INTERRUPT = 0x02
)

// EFI Simple Network Protocol offsets
const (
	start      = 0x08
	stop       = 0x10
	initialize = 0x18
	getStatus  = 0x58
	transmit   = 0x60
	receive    = 0x68
)

// transmitPolls bounds the GetStatus() invocations performed by
// [SimpleNetwork.Transmit] while waiting for transmit completion.
const transmitPolls = 1000

// SimpleNetwork represents an EFI Simple Network Protocol instance.
type SimpleNetwork struct {
	iface    *Interface
	revision uint64
}

// GUID returns the EFI Simple Network Protocol identifier.
func (sn *SimpleNetwork) GUID() GUID {
	return EFI_SIMPLE_NETWORK_PROTOCOL_GUID
}

// Bind associates the protocol instance with its firmware interface.
func (sn *SimpleNetwork) Bind(iface *Interface) (err error) {
	var data struct {
		Revision uint64
	}

	if err = iface.Decode(&data); err != nil {
		return
	}

	sn.iface = iface
	sn.revision = data.Revision

	return
}

// Revision returns the protocol interface revision.
func (sn *SimpleNetwork) Revision() uint64 {
	return sn.revision
}

// LastStatus returns the status of the last protocol call, it carries the
// warning reported by calls which succeeded with a nil error.
func (sn *SimpleNetwork) LastStatus() Status {
	return sn.iface.LastStatus()
}

// Start calls EFI_SIMPLE_NETWORK.Start()
func (sn *SimpleNetwork) Start() (err error) {
	_, err = sn.iface.Call(start, sn.iface.Address())
	return
}

// Stop calls EFI_SIMPLE_NETWORK.Stop()
func (sn *SimpleNetwork) Stop() (err error) {
	_, err = sn.iface.Call(stop, sn.iface.Address())
	return
}

// Initialize calls EFI_SIMPLE_NETWORK.Initialize()
func (sn *SimpleNetwork) Initialize() (err error) {
	_, err = sn.iface.Call(initialize,
		sn.iface.Address(),
		uint64(0),
		uint64(0),
	)

	return
}

// GetStatus calls EFI_SIMPLE_NETWORK.GetStatus()
func (sn *SimpleNetwork) GetStatus() (interruptStatus uint32, txBuf uint64, err error) {
	_, err = sn.iface.Call(getStatus,
		sn.iface.Address(),
		&interruptStatus,
		&txBuf,
	)

	return
}

// Transmit calls EFI_SIMPLE_NETWORK.Transmit(), the function waits for
// EFI_SIMPLE_NETWORK.GetStatus() to report a transmit interrupt before
// returning.
func (sn *SimpleNetwork) Transmit(buf []byte) (err error) {
	var interruptStatus uint32

	if len(buf) == 0 {
		return ErrInvalidParameter
	}

	_, err = sn.iface.Call(transmit,
		sn.iface.Address(),
		uint64(0),
		uint64(len(buf)),
		buf,
		uint64(0),
		uint64(0),
		uint64(0),
	)

	if err != nil {
		return
	}

	for i := 0; i < transmitPolls; i++ {
		if interruptStatus, _, err = sn.GetStatus(); err != nil {
			return
		}

		if interruptStatus&EFI_SIMPLE_NETWORK_TRANSMIT_INTERRUPT != 0 {
			return
		}
	}

	return errors.New("transmit completion timeout")
}

// Receive calls EFI_SIMPLE_NETWORK.Receive(), a zero length is returned when
// no packet is available.
func (sn *SimpleNetwork) Receive(buf []byte) (n int, err error) {
	size := uint64(len(buf))

	_, err = sn.iface.Call(receive,
		sn.iface.Address(),
		uint64(0),
		&size,
		buf,
		uint64(0),
		uint64(0),
		uint64(0),
	)

	switch {
	case errors.Is(err, ErrNotReady):
		return 0, nil
	case err != nil:
		return 0, err
	}

	return int(size), nil
}
