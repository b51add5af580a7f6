// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && amd64

package uefi

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/usbarmory/tamago/dma"
)

// minimum and maximum number of arguments passed to EFI services
const (
	minArgs = 4
	maxArgs = 16
)

// defined in call_amd64.s
func callService(fn uint64, n int, args []uint64) (status uint64)

// Native represents the firmware binding for the running UEFI application,
// it invokes EFI services with the Microsoft x64 calling convention.
var Native Firmware = &native{}

type native struct {
	sync.Mutex
}

// ptrval converts a service argument to its register value.
//
// Obtaining a pointer in this fashion is typically unsafe and tamago/dma
// package would be best to handle this. However, as arguments are prepared
// right before invoking Go assembly, it is considered safe as it is identical
// as having *uint64 as callService prototype.
func ptrval(arg any) uint64 {
	var p unsafe.Pointer

	switch v := arg.(type) {
	case uint64:
		return v
	case *uint64:
		p = unsafe.Pointer(v)
	case *uint32:
		p = unsafe.Pointer(v)
	case *uint16:
		p = unsafe.Pointer(v)
	case *byte:
		p = unsafe.Pointer(v)
	case *GUID:
		p = unsafe.Pointer(v)
	case []byte:
		if len(v) == 0 {
			return 0
		}

		p = unsafe.Pointer(&v[0])
	default:
		panic(fmt.Sprintf("internal error, invalid argument type %T", arg))
	}

	return uint64(uintptr(p))
}

func (fw *native) Call(fn uint64, args ...any) (status uint64) {
	if len(args) > maxArgs {
		panic("internal error, too many arguments")
	}

	regs := make([]uint64, max(len(args), minArgs))

	for i, arg := range args {
		regs[i] = ptrval(arg)
	}

	fw.Lock()
	defer fw.Unlock()

	status = callService(fn, len(regs), regs)
	runtime.KeepAlive(args)

	return
}

func (fw *native) Memory(addr uint64, size int) (buf []byte, err error) {
	if addr == 0 || size <= 0 {
		return nil, fmt.Errorf("invalid memory range %#x+%d", addr, size)
	}

	r, err := dma.NewRegion(uint(addr), size, false)

	if err != nil {
		return
	}

	ptr, buf := r.Reserve(size, 0)
	defer r.Release(ptr)

	return
}
