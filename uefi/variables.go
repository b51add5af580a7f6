// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

var (
	EFI_GLOBAL_VARIABLE_GUID = MustParseGUID("8BE4DF61-93CA-11D2-AA0D-00E098032B8C")
)

// EFI Runtime Services offset for Variable Services
// See: https://uefi.org/specs/UEFI/2.11/08_Services_Runtime_Services.html#variable-services
const (
	getVariable         = 0x48
	getNextVariableName = 0x50
	setVariable         = 0x58
)

// initial GetNextVariableName() buffer size in bytes
const variableNameSize = 1024

// EFI Variable Attributes
const (
	EFI_VARIABLE_NON_VOLATILE                          = 0x01
	EFI_VARIABLE_BOOTSERVICE_ACCESS                    = 0x02
	EFI_VARIABLE_RUNTIME_ACCESS                        = 0x04
	EFI_VARIABLE_HARDWARE_ERROR_RECORD                 = 0x08
	EFI_VARIABLE_AUTHENTICATED_WRITE_ACCESS            = 0x10
	EFI_VARIABLE_TIME_BASED_AUTHENTICATED_WRITE_ACCESS = 0x20
	EFI_VARIABLE_APPEND_WRITE                          = 0x40
	EFI_VARIABLE_ENHANCED_AUTHENTICATED_ACCESS         = 0x80
)

// VariableAttributes represents the attributes of a UEFI variable.
// See: https://uefi.org/specs/UEFI/2.11/08_Services_Runtime_Services.html#getvariable
type VariableAttributes struct {
	NonVolatile              bool
	BootServiceAccess        bool
	RuntimeServiceAccess     bool
	HardwareErrorRecord      bool
	AuthWriteAccess          bool
	TimeBasedAuthWriteAccess bool
	AppendWrite              bool
	EnhancedAuthAccess       bool
}

func parseAttributes(attributes uint32) (attr VariableAttributes) {
	attr.NonVolatile = attributes&EFI_VARIABLE_NON_VOLATILE != 0
	attr.BootServiceAccess = attributes&EFI_VARIABLE_BOOTSERVICE_ACCESS != 0
	attr.RuntimeServiceAccess = attributes&EFI_VARIABLE_RUNTIME_ACCESS != 0
	attr.HardwareErrorRecord = attributes&EFI_VARIABLE_HARDWARE_ERROR_RECORD != 0
	attr.AuthWriteAccess = attributes&EFI_VARIABLE_AUTHENTICATED_WRITE_ACCESS != 0
	attr.TimeBasedAuthWriteAccess = attributes&EFI_VARIABLE_TIME_BASED_AUTHENTICATED_WRITE_ACCESS != 0
	attr.AppendWrite = attributes&EFI_VARIABLE_APPEND_WRITE != 0
	attr.EnhancedAuthAccess = attributes&EFI_VARIABLE_ENHANCED_AUTHENTICATED_ACCESS != 0

	return
}

// Bits returns the attributes bitmask.
func (attr VariableAttributes) Bits() (attributes uint32) {
	flags := []struct {
		set bool
		bit uint32
	}{
		{attr.NonVolatile, EFI_VARIABLE_NON_VOLATILE},
		{attr.BootServiceAccess, EFI_VARIABLE_BOOTSERVICE_ACCESS},
		{attr.RuntimeServiceAccess, EFI_VARIABLE_RUNTIME_ACCESS},
		{attr.HardwareErrorRecord, EFI_VARIABLE_HARDWARE_ERROR_RECORD},
		{attr.AuthWriteAccess, EFI_VARIABLE_AUTHENTICATED_WRITE_ACCESS},
		{attr.TimeBasedAuthWriteAccess, EFI_VARIABLE_TIME_BASED_AUTHENTICATED_WRITE_ACCESS},
		{attr.AppendWrite, EFI_VARIABLE_APPEND_WRITE},
		{attr.EnhancedAuthAccess, EFI_VARIABLE_ENHANCED_AUTHENTICATED_ACCESS},
	}

	for _, f := range flags {
		if f.set {
			attributes |= f.bit
		}
	}

	return
}

// GetVariable calls EFI_RUNTIME_SERVICES.GetVariable().
// See: https://uefi.org/specs/UEFI/2.11/08_Services_Runtime_Services.html#getvariable
func (s *RuntimeServices) GetVariable(name string, guid GUID, withData bool) (attr VariableAttributes, dataSize uint64, data []byte, err error) {
	var attributes uint32

	nameUTF16 := toUTF16(name)

	// The first call retrieves the attributes and size of data
	status := s.call(getVariable,
		nameUTF16,
		&guid,
		&attributes,
		&dataSize,
		[]byte(nil),
	)

	if Status(status) != EFI_SUCCESS && Status(status) != EFI_BUFFER_TOO_SMALL {
		return VariableAttributes{}, 0, nil, parseStatus(status)
	}

	attr = parseAttributes(attributes)

	if !withData || dataSize == 0 {
		return attr, dataSize, nil, nil
	}

	// The second call retrieves the data
	data = make([]byte, dataSize)

	status = s.call(getVariable,
		nameUTF16,
		&guid,
		&attributes,
		&dataSize,
		data,
	)

	if err = parseStatus(status); err != nil {
		return attr, 0, nil, err
	}

	return parseAttributes(attributes), dataSize, data[:dataSize], nil
}

// GetNextVariableName calls EFI_RUNTIME_SERVICES.GetNextVariableName(), the
// name and GUID arguments are updated with the next variable ones.
//
// An empty name starts the enumeration, [ErrNotFound] is returned once all
// variables have been returned.
// See: https://uefi.org/specs/UEFI/2.11/08_Services_Runtime_Services.html#getnextvariablename
func (s *RuntimeServices) GetNextVariableName(name *string, guid *GUID) (err error) {
	var status uint64

	lastName := toUTF16(*name)
	size := uint64(max(variableNameSize, len(lastName)))

	for i := 0; i < 2; i++ {
		nameBuf := make([]byte, size)
		copy(nameBuf, lastName)

		status = s.call(getNextVariableName,
			&size,
			nameBuf,
			guid,
		)

		if Status(status) == EFI_BUFFER_TOO_SMALL && size > uint64(len(nameBuf)) {
			continue
		}

		if err = parseStatus(status); err != nil {
			return
		}

		*name = fromUTF16(nameBuf)

		return
	}

	return parseStatus(status)
}

// SetVariable calls EFI_RUNTIME_SERVICES.SetVariable(), empty data deletes
// the variable.
func (s *RuntimeServices) SetVariable(name string, guid GUID, attr VariableAttributes, data []byte) (err error) {
	status := s.call(setVariable,
		toUTF16(name),
		&guid,
		uint64(attr.Bits()),
		uint64(len(data)),
		data,
	)

	return parseStatus(status)
}
