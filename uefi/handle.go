// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
)

// EFI Boot Services offsets
const (
	locateHandle       = 0xb0
	protocolsPerHandle = 0x130
)

// EFI_LOCATE_SEARCH_TYPE
const (
	AllHandles = iota
	ByRegisterNotify
	ByProtocol
)

// initial LocateHandle buffer size in handles
const handleEntries = 16

// Handle represents an opaque EFI handle, only valid while EFI Boot Services
// are available.
type Handle uint64

// LocateHandle calls EFI_BOOT_SERVICES.LocateHandle() to return the handles
// supporting the argument protocol.
//
// The handle buffer is resized once if the firmware reports it as too small,
// every invocation enumerates the handle database again.
func (s *BootServices) LocateHandle(guid GUID) (handles []Handle, err error) {
	var status uint64

	if err = s.valid(); err != nil {
		return
	}

	size := uint64(handleEntries * 8)

	for i := 0; i < 2; i++ {
		buf := make([]byte, size)

		status = s.call(locateHandle,
			uint64(ByProtocol),
			&guid,
			uint64(0),
			&size,
			buf,
		)

		if Status(status) == EFI_BUFFER_TOO_SMALL && size > uint64(len(buf)) {
			continue
		}

		if err = parseStatus(status); err != nil {
			return nil, err
		}

		if size > uint64(len(buf)) || size%8 != 0 {
			return nil, ErrBadBufferSize
		}

		for off := uint64(0); off < size; off += 8 {
			handles = append(handles, Handle(binary.LittleEndian.Uint64(buf[off:])))
		}

		return
	}

	return nil, parseStatus(status)
}

// ProtocolsPerHandle calls EFI_BOOT_SERVICES.ProtocolsPerHandle() to return
// the GUIDs of the protocols installed on the argument handle.
func (s *BootServices) ProtocolsPerHandle(handle Handle) (guids []GUID, err error) {
	var addr uint64
	var count uint64

	if err = s.valid(); err != nil {
		return
	}

	status := s.call(protocolsPerHandle,
		uint64(handle),
		&addr,
		&count,
	)

	if err = parseStatus(status); err != nil {
		return
	}

	if count == 0 {
		return
	}

	// the array is allocated by the firmware from pool memory
	buf := &Pool{
		addr: addr,
		size: int(count * 8),
		bs:   s,
	}

	defer func() {
		if e := buf.Free(); err == nil {
			err = e
		}
	}()

	ptrs, err := buf.Bytes()

	if err != nil {
		return
	}

	for off := 0; off < len(ptrs); off += 8 {
		var guid GUID

		if err = decode(s.fw, binary.LittleEndian.Uint64(ptrs[off:]), &guid); err != nil {
			return nil, err
		}

		guids = append(guids, guid)
	}

	return
}
