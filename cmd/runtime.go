// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/usbarmory/go-uefi/shell"
	"github.com/usbarmory/go-uefi/uefi"
)

// maximum number of variables listed by the vars command
const maxVariables = 1024

func init() {
	shell.Add(shell.Cmd{
		Name: "vars",
		Help: "EFI_RUNTIME_SERVICES.GetNextVariableName()",
		Fn:   varsCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "var",
		Args:    2,
		Pattern: regexp.MustCompile(`^var (` + guidPattern + `) (\S+)$`),
		Syntax:  "<registry format GUID> <name>",
		Help:    "EFI_RUNTIME_SERVICES.GetVariable()",
		Fn:      varCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "date",
		Args:    1,
		Pattern: regexp.MustCompile(`^date(.*)`),
		Syntax:  "(time in RFC339 format)?",
		Help:    "EFI_RUNTIME_SERVICES.GetTime()/SetTime()",
		Fn:      dateCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "reset",
		Args:    1,
		Pattern: regexp.MustCompile(`^reset(?: (cold|warm))?$`),
		Help:    "EFI_RUNTIME_SERVICES.ResetSystem()",
		Syntax:  "(cold|warm)?",
		Fn:      resetCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "shutdown",
		Args:    1,
		Pattern: regexp.MustCompile(`^(shutdown|poweroff)$`),
		Help:    "shutdown system",
		Fn:      shutdownCmd,
	})
}

func runtimeServices(iface *shell.Interface) (*uefi.RuntimeServices, error) {
	if iface == nil || iface.UEFI == nil || iface.UEFI.Runtime == nil {
		return nil, errors.New("EFI Runtime Services are not available")
	}

	return iface.UEFI.Runtime, nil
}

func varsCmd(iface *shell.Interface, _ []string) (res string, err error) {
	var buf bytes.Buffer
	var rs *uefi.RuntimeServices
	var name string
	var guid uefi.GUID

	if rs, err = runtimeServices(iface); err != nil {
		return
	}

	for i := 0; i < maxVariables; i++ {
		err = rs.GetNextVariableName(&name, &guid)

		if errors.Is(err, uefi.ErrNotFound) {
			return buf.String(), nil
		}

		if err != nil {
			return
		}

		fmt.Fprintf(&buf, "%s %s\n", guid, name)
	}

	return buf.String(), nil
}

func varCmd(iface *shell.Interface, arg []string) (res string, err error) {
	var buf bytes.Buffer
	var rs *uefi.RuntimeServices

	guid, err := uefi.ParseGUID(arg[0])

	if err != nil {
		return
	}

	if rs, err = runtimeServices(iface); err != nil {
		return
	}

	attr, size, data, err := rs.GetVariable(arg[1], guid, true)

	if err != nil {
		return
	}

	var flags []string

	for _, f := range []struct {
		set  bool
		name string
	}{
		{attr.NonVolatile, "NV"},
		{attr.BootServiceAccess, "BS"},
		{attr.RuntimeServiceAccess, "RT"},
		{attr.HardwareErrorRecord, "HR"},
		{attr.AuthWriteAccess, "AW"},
		{attr.TimeBasedAuthWriteAccess, "AT"},
		{attr.AppendWrite, "AP"},
		{attr.EnhancedAuthAccess, "EA"},
	} {
		if f.set {
			flags = append(flags, f.name)
		}
	}

	fmt.Fprintf(&buf, "Attributes: %s\n", strings.Join(flags, ","))
	fmt.Fprintf(&buf, "Size: %d\n", size)
	fmt.Fprintf(&buf, "%s", hex.Dump(data))

	return buf.String(), nil
}

func dateCmd(iface *shell.Interface, arg []string) (res string, err error) {
	var rs *uefi.RuntimeServices
	var t *uefi.Time

	if rs, err = runtimeServices(iface); err != nil {
		return
	}

	if s := strings.TrimSpace(arg[0]); len(s) > 0 {
		tm, err := time.Parse(time.RFC3339, s)

		if err != nil {
			return "", err
		}

		if err = rs.SetTime(uefi.NewTime(tm)); err != nil {
			return "", err
		}
	}

	if t, _, err = rs.GetTime(); err != nil {
		return
	}

	return t.Time().Format(time.RFC3339), nil
}

func resetCmd(iface *shell.Interface, arg []string) (_ string, err error) {
	var rs *uefi.RuntimeServices
	var resetType int

	if rs, err = runtimeServices(iface); err != nil {
		return
	}

	switch arg[0] {
	case "cold":
		resetType = uefi.EfiResetCold
	case "warm", "":
		resetType = uefi.EfiResetWarm
	case "shutdown":
		resetType = uefi.EfiResetShutdown
	}

	log.Printf("performing system reset type %d", resetType)
	err = rs.ResetSystem(resetType)

	return
}

func shutdownCmd(iface *shell.Interface, _ []string) (_ string, err error) {
	return resetCmd(iface, []string{"shutdown"})
}
