// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && amd64

package x64

// In8 reads a byte from the argument I/O port.
func In8(port uint16) (val uint8)

// Out8 writes a byte to the argument I/O port.
func Out8(port uint16, val uint8)
