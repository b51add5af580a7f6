// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/hako/durafmt"

	"github.com/usbarmory/go-uefi/shell"
	"github.com/usbarmory/go-uefi/uefi"
)

// WatchdogTimeout represents the default watchdog timer timeout.
var WatchdogTimeout = 5 * time.Minute

// waitSlack is added to the wait command timer to bound the event wait.
const waitSlack = 1 * time.Second

func init() {
	shell.Add(shell.Cmd{
		Name:    "wait",
		Args:    1,
		Pattern: regexp.MustCompile(`^wait (\S+)$`),
		Syntax:  "<duration>",
		Help:    "EFI_BOOT_SERVICES.WaitForEvent() on a timer event",
		Fn:      waitCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "watchdog",
		Args:    1,
		Pattern: regexp.MustCompile(`^watchdog(?: (\d+))?$`),
		Syntax:  "(seconds)?",
		Help:    "EFI_BOOT_SERVICES.SetWatchdogTimer(), 0 disables",
		Fn:      watchdogCmd,
	})
}

func waitCmd(iface *shell.Interface, arg []string) (res string, err error) {
	var bs *uefi.BootServices
	var event uefi.Event

	d, err := time.ParseDuration(arg[0])

	if err != nil {
		return "", fmt.Errorf("invalid duration, %v", err)
	}

	if bs, err = bootServices(iface); err != nil {
		return
	}

	if event, err = bs.CreateEvent(uefi.EVT_TIMER, uefi.TPL_APPLICATION); err != nil {
		return
	}

	defer func() {
		if e := bs.CloseEvent(event); err == nil {
			err = e
		}
	}()

	if err = bs.SetTimer(event, uefi.TimerRelative, d); err != nil {
		return
	}

	start := time.Now()

	if err = bs.WaitForEvent(event, d+waitSlack); err != nil {
		return
	}

	return fmt.Sprintf("event signaled after %s", durafmt.Parse(time.Since(start)).LimitFirstN(2)), nil
}

func watchdogCmd(iface *shell.Interface, arg []string) (res string, err error) {
	var bs *uefi.BootServices

	timeout := WatchdogTimeout

	if len(arg[0]) > 0 {
		n, err := strconv.Atoi(arg[0])

		if err != nil {
			return "", fmt.Errorf("invalid timeout, %v", err)
		}

		timeout = time.Duration(n) * time.Second
	}

	if bs, err = bootServices(iface); err != nil {
		return
	}

	if err = bs.SetWatchdogTimer(timeout); err != nil {
		return
	}

	if timeout == 0 {
		return "watchdog disabled", nil
	}

	return fmt.Sprintf("watchdog set to %s", durafmt.Parse(timeout)), nil
}
