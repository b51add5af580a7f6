// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && amd64

package x64

import (
	_ "unsafe"

	"github.com/usbarmory/go-uefi/uefi"
)

// Console represents the early UEFI services console for pre UEFI.Init()
// standard output, its input and output interfaces are set in cpuinit.
var Console *uefi.Console

func earlyConsole() *uefi.Console {
	if Console == nil {
		Console = uefi.NewConsole(uefi.Native, conIn, conOut)
	}

	return Console
}

//go:linkname printk runtime.printk
func printk(c byte) {
	con := earlyConsole()
	con.Output([]byte{c, 0x00})

	if c == 0x0a && con.ForceLine { // LF
		con.Output([]byte{0x0d, 0x00}) // CR
	}
}
