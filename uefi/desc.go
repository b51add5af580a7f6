// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"bytes"
	"encoding/binary"
	"errors"
)

func marshalBinary(data any) (buf []byte, err error) {
	b := new(bytes.Buffer)
	err = binary.Write(b, binary.LittleEndian, data)
	return b.Bytes(), err
}

func unmarshalBinary(buf []byte, data any) (err error) {
	_, err = binary.Decode(buf, binary.LittleEndian, data)
	return
}

// decode reads a firmware structure located at addr.
func decode(fw Firmware, addr uint64, data any) (err error) {
	if addr == 0 {
		return errors.New("invalid address")
	}

	n := binary.Size(data)

	if n <= 0 {
		return errors.New("invalid data type")
	}

	buf, err := fw.Memory(addr, n)

	if err != nil {
		return
	}

	return unmarshalBinary(buf, data)
}
