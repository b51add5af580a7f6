// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// maximum firmware owned string length in UCS-2 characters
const maxStringLength = 4096

// toUTF16 converts a string to a null terminated UCS-2 byte array.
func toUTF16(s string) (buf []byte) {
	for _, r := range utf16.Encode([]rune(s)) {
		buf = binary.LittleEndian.AppendUint16(buf, r)
	}

	return append(buf, 0x00, 0x00)
}

// fromUTF16 converts a null terminated UCS-2 byte array to a string.
func fromUTF16(buf []byte) string {
	var s []uint16

	for i := 0; i+1 < len(buf); i += 2 {
		r := binary.LittleEndian.Uint16(buf[i:])

		if r == 0x00 {
			break
		}

		s = append(s, r)
	}

	return string(utf16.Decode(s))
}

// readUTF16 reads a null terminated UCS-2 string from firmware memory.
func readUTF16(fw Firmware, addr uint64) (string, error) {
	var s []uint16

	for i := uint64(0); i < maxStringLength; i++ {
		buf, err := fw.Memory(addr+i*2, 2)

		if err != nil {
			return "", err
		}

		r := binary.LittleEndian.Uint16(buf)

		if r == 0x00 {
			return string(utf16.Decode(s)), nil
		}

		s = append(s, r)
	}

	return "", fmt.Errorf("string at %#x is not terminated", addr)
}
