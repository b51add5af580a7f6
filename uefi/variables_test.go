// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"bytes"
	"testing"
)

type testVariable struct {
	name string
	guid GUID
	attr uint32
	data []byte
}

// variableStore scripts variable services over the argument variables.
func (fw *testFirmware) variableStore(vars []*testVariable) {
	find := func(name []byte, guid GUID) (int, *testVariable) {
		for i, v := range vars {
			if v.name == fromUTF16(name) && v.guid == guid {
				return i, v
			}
		}

		return -1, nil
	}

	fw.runtime(getVariable, func(args []any) Status {
		_, v := find(args[0].([]byte), *args[1].(*GUID))

		if v == nil {
			return EFI_NOT_FOUND
		}

		size := args[3].(*uint64)
		buf := args[4].([]byte)

		put32(args[2], v.attr)

		if *size < uint64(len(v.data)) {
			*size = uint64(len(v.data))
			return EFI_BUFFER_TOO_SMALL
		}

		*size = uint64(len(v.data))
		copy(buf, v.data)

		return EFI_SUCCESS
	})

	fw.runtime(getNextVariableName, func(args []any) Status {
		size := args[0].(*uint64)
		buf := args[1].([]byte)
		guid := args[2].(*GUID)

		next := 0

		if fromUTF16(buf) != "" {
			i, _ := find(buf, *guid)

			if i < 0 {
				return EFI_INVALID_PARAMETER
			}

			next = i + 1
		}

		if next >= len(vars) {
			return EFI_NOT_FOUND
		}

		name := toUTF16(vars[next].name)

		if *size < uint64(len(name)) {
			*size = uint64(len(name))
			return EFI_BUFFER_TOO_SMALL
		}

		*size = uint64(len(name))
		copy(buf, name)
		*guid = vars[next].guid

		return EFI_SUCCESS
	})

	fw.runtime(setVariable, func(args []any) Status {
		name := args[0].([]byte)
		guid := *args[1].(*GUID)
		data := args[4].([]byte)

		if uint64(len(data)) != args[3].(uint64) {
			return EFI_INVALID_PARAMETER
		}

		i, v := find(name, guid)

		switch {
		case v == nil && len(data) == 0:
			return EFI_NOT_FOUND
		case v == nil:
			vars = append(vars, &testVariable{
				name: fromUTF16(name),
				guid: guid,
				attr: uint32(args[2].(uint64)),
				data: data,
			})
		case len(data) == 0:
			vars = append(vars[:i], vars[i+1:]...)
		default:
			v.data = data
		}

		return EFI_SUCCESS
	})
}

func TestGetVariable(t *testing.T) {
	s, fw := newTestServices(t)

	fw.variableStore([]*testVariable{
		{"BootCurrent", EFI_GLOBAL_VARIABLE_GUID, 0x07, []byte{0x01, 0x00}},
		{"Empty", EFI_GLOBAL_VARIABLE_GUID, 0x03, nil},
	})

	attr, size, data, err := s.Runtime.GetVariable("BootCurrent", EFI_GLOBAL_VARIABLE_GUID, true)

	if err != nil {
		t.Fatal(err)
	}

	if !attr.NonVolatile || !attr.BootServiceAccess || !attr.RuntimeServiceAccess || attr.AppendWrite {
		t.Fatalf("unexpected attributes %+v", attr)
	}

	if size != 2 || !bytes.Equal(data, []byte{0x01, 0x00}) {
		t.Fatalf("unexpected data %x", data)
	}

	if _, size, data, err = s.Runtime.GetVariable("BootCurrent", EFI_GLOBAL_VARIABLE_GUID, false); err != nil || size != 2 || data != nil {
		t.Fatalf("unexpected size-only result (%d, %x, %v)", size, data, err)
	}

	if _, size, _, err = s.Runtime.GetVariable("Empty", EFI_GLOBAL_VARIABLE_GUID, true); err != nil || size != 0 {
		t.Fatalf("unexpected empty variable result (%d, %v)", size, err)
	}

	if _, _, _, err = s.Runtime.GetVariable("Missing", EFI_GLOBAL_VARIABLE_GUID, true); err != ErrNotFound {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestGetNextVariableName(t *testing.T) {
	s, fw := newTestServices(t)

	long := string(bytes.Repeat([]byte("x"), variableNameSize))

	vars := []*testVariable{
		{"BootOrder", EFI_GLOBAL_VARIABLE_GUID, 0x07, nil},
		{long, testProtocolGUID, 0x03, nil},
		{"Timeout", EFI_GLOBAL_VARIABLE_GUID, 0x07, nil},
	}

	fw.variableStore(vars)

	var name string
	var guid GUID
	var names []string

	for {
		err := s.Runtime.GetNextVariableName(&name, &guid)

		if err == ErrNotFound {
			break
		}

		if err != nil {
			t.Fatal(err)
		}

		names = append(names, name)

		if len(names) > len(vars) {
			t.Fatal("enumeration does not terminate")
		}
	}

	if len(names) != 3 || names[0] != "BootOrder" || names[1] != long || names[2] != "Timeout" {
		t.Fatalf("unexpected names %q", names)
	}

	if guid != EFI_GLOBAL_VARIABLE_GUID {
		t.Fatalf("unexpected GUID %s", guid)
	}
}

func TestSetVariable(t *testing.T) {
	s, fw := newTestServices(t)
	fw.variableStore(nil)

	attr := VariableAttributes{
		NonVolatile:       true,
		BootServiceAccess: true,
	}

	if attr.Bits() != EFI_VARIABLE_NON_VOLATILE|EFI_VARIABLE_BOOTSERVICE_ACCESS {
		t.Fatalf("unexpected attributes %#x", attr.Bits())
	}

	if err := s.Runtime.SetVariable("Test", testProtocolGUID, attr, []byte("data")); err != nil {
		t.Fatal(err)
	}

	a, _, data, err := s.Runtime.GetVariable("Test", testProtocolGUID, true)

	if err != nil {
		t.Fatal(err)
	}

	if a != attr || string(data) != "data" {
		t.Fatalf("unexpected variable (%+v, %q)", a, data)
	}

	if err = s.Runtime.SetVariable("Test", testProtocolGUID, attr, nil); err != nil {
		t.Fatal(err)
	}

	if _, _, _, err = s.Runtime.GetVariable("Test", testProtocolGUID, true); err != ErrNotFound {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSetVariableWarning(t *testing.T) {
	s, fw := newTestServices(t)

	fw.runtime(setVariable, func(args []any) Status {
		return EFI_WARN_RESET_REQUIRED
	})

	attr := VariableAttributes{
		NonVolatile:          true,
		BootServiceAccess:    true,
		RuntimeServiceAccess: true,
	}

	if err := s.Runtime.SetVariable("Test", testProtocolGUID, attr, []byte{1}); err != nil {
		t.Fatal(err)
	}

	if status := s.Runtime.LastStatus(); status != EFI_WARN_RESET_REQUIRED || status.Class() != Warning {
		t.Fatalf("unexpected status %s", status)
	}
}
