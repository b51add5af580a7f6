// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && amd64

package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"github.com/usbarmory/go-uefi/cmd"
	"github.com/usbarmory/go-uefi/shell"
	"github.com/usbarmory/go-uefi/uefi/x64"
)

// set at build time
var (
	Revision string
	Build    string
)

var banner string

func init() {
	log.SetFlags(0)

	banner = fmt.Sprintf("go-uefi • %s/%s (%s) • UEFI • %s %s",
		runtime.GOOS, runtime.GOARCH, runtime.Version(),
		Revision, Build)
}

func main() {
	logFile, _ := os.OpenFile("/runtime.log", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	log.SetOutput(io.MultiWriter(x64.Console, logFile))

	if bs, err := x64.UEFI.BootServices(); err == nil {
		if err = bs.SetWatchdogTimer(cmd.WatchdogTimeout); err != nil {
			log.Printf("could not set watchdog timer, %v", err)
		}
	}

	console := &shell.Interface{
		Banner:     banner,
		Log:        logFile,
		ReadWriter: x64.Console,
		UEFI:       x64.UEFI,
	}

	console.Start()

	runtime.Exit(0)
}
