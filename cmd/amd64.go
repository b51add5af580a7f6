// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && amd64

package cmd

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"

	"github.com/usbarmory/tamago/dma"

	"github.com/usbarmory/go-uefi/shell"
	"github.com/usbarmory/go-uefi/uefi/x64"
)

// System Management Mode registers
const (
	MSR_SMI_COUNT      = 0x34
	MSR_MTRR_CAP       = 0xfe
	IA32_SMRR_PHYSBASE = 0x1f2
	IA32_SMRR_PHYSMASK = 0x1f3

	// Advanced Power Management control and status ports
	APM_CNT = 0xb2
	APM_STS = 0xb3
)

func init() {
	shell.Add(shell.Cmd{
		Name: "info",
		Help: "runtime information",
		Fn:   infoCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "cpuid",
		Args:    2,
		Pattern: regexp.MustCompile(`^cpuid\s+([[:xdigit:]]+) ([[:xdigit:]]+)$`),
		Syntax:  "<leaf> <subleaf>",
		Help:    "display CPU capabilities",
		Fn:      cpuidCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "smm",
		Args:    1,
		Pattern: regexp.MustCompile(`^smm( apm)?$`),
		Syntax:  "(apm)?",
		Help:    "System Management Mode information, apm triggers a software SMI",
		Fn:      smmCmd,
	})

	shell.Add(shell.Cmd{
		Name: "uptime",
		Help: "show how long the system has been running",
		Fn:   uptimeCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "dma",
		Args:    1,
		Pattern: regexp.MustCompile(`^dma(?:(?: )(free|used))?$`),
		Help:    "show allocation of default DMA region",
		Syntax:  "(free|used)?",
		Fn:      dmaCmd,
	})

	shell.Add(shell.Cmd{
		Name: "halt",
		Help: "halt the machine",
		Fn:   haltCmd,
	})
}

func infoCmd(_ *shell.Interface, _ []string) (string, error) {
	var res bytes.Buffer

	ramStart, ramEnd := runtime.MemRegion()

	fmt.Fprintf(&res, "Runtime ......: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&res, "RAM ..........: %#08x-%#08x (%s)\n", ramStart, ramEnd, humanize.IBytes(ramEnd-ramStart))
	fmt.Fprintf(&res, "CPU ..........: %s\n", x64.AMD64.Name())

	if x64.Heap != nil {
		fmt.Fprintf(&res, "Heap .........: %#08x (%d pages)\n", x64.Heap.Address(), x64.Heap.Pages())
	}

	return res.String(), nil
}

func cpuidCmd(_ *shell.Interface, arg []string) (string, error) {
	var res bytes.Buffer

	leaf, err := strconv.ParseUint(arg[0], 16, 32)

	if err != nil {
		return "", fmt.Errorf("invalid leaf, %v", err)
	}

	subleaf, err := strconv.ParseUint(arg[1], 16, 32)

	if err != nil {
		return "", fmt.Errorf("invalid subleaf, %v", err)
	}

	eax, ebx, ecx, edx := x64.AMD64.CPUID(uint32(leaf), uint32(subleaf))

	fmt.Fprintf(&res, "EAX      EBX      ECX      EDX\n")
	fmt.Fprintf(&res, "%08x %08x %08x %08x\n", eax, ebx, ecx, edx)

	return res.String(), nil
}

func smmCmd(_ *shell.Interface, arg []string) (string, error) {
	var res bytes.Buffer

	mtrrCap := uint64(x64.AMD64.MSR(MSR_MTRR_CAP))
	smrr := (mtrrCap>>11)&1 == 1

	fmt.Fprintf(&res, "MTRR capabilities ..: %#04x\n", mtrrCap)
	fmt.Fprintf(&res, "SMRR support .......: %v\n", smrr)

	// SMRR registers are not readable when unsupported
	if smrr {
		fmt.Fprintf(&res, "SMRR base ..........: %#x\n", uint64(x64.AMD64.MSR(IA32_SMRR_PHYSBASE)))
		fmt.Fprintf(&res, "SMRR mask ..........: %#x\n", uint64(x64.AMD64.MSR(IA32_SMRR_PHYSMASK)))
	}

	fmt.Fprintf(&res, "SMI count ..........: %d\n", uint64(x64.AMD64.MSR(MSR_SMI_COUNT)))

	if strings.TrimSpace(arg[0]) != "apm" {
		return res.String(), nil
	}

	fmt.Fprintf(&res, "APM control/status .: %#02x/%#02x\n", x64.In8(APM_CNT), x64.In8(APM_STS))

	x64.Out8(APM_CNT, 0x01)
	x64.Out8(APM_STS, 0x04)

	fmt.Fprintf(&res, "APM control/status .: %#02x/%#02x\n", x64.In8(APM_CNT), x64.In8(APM_STS))
	fmt.Fprintf(&res, "SMI count ..........: %d\n", uint64(x64.AMD64.MSR(MSR_SMI_COUNT)))

	return res.String(), nil
}

func uptimeCmd(_ *shell.Interface, _ []string) (string, error) {
	ns := int64(float64(x64.AMD64.TimerFn()) * x64.AMD64.TimerMultiplier)
	return durafmt.Parse(time.Duration(ns) * time.Nanosecond).String(), nil
}

func dmaCmd(_ *shell.Interface, arg []string) (string, error) {
	var res []string

	if dma.Default() == nil {
		return "no default DMA region is present", nil
	}

	dump := func(blocks map[uint]uint, tag string) string {
		var r []string
		var t uint

		for addr, n := range blocks {
			t += n
			r = append(r, fmt.Sprintf("%#08x-%#08x %10d", addr, addr+n, n))
		}

		sort.Strings(r)
		r = append(r, fmt.Sprintf("%21s %10d bytes %s", "", t, tag))

		return strings.Join(r, "\n")
	}

	if arg[0] == "" || arg[0] == "free" {
		if blocks := dma.Default().FreeBlocks(); len(blocks) > 0 {
			res = append(res, dump(blocks, "free"))
		}
	}

	if arg[0] == "" || arg[0] == "used" {
		if blocks := dma.Default().UsedBlocks(); len(blocks) > 0 {
			res = append(res, dump(blocks, "used"))
		}
	}

	return strings.Join(res, "\n"), nil
}

func haltCmd(_ *shell.Interface, _ []string) (string, error) {
	fmt.Printf("Goodbye from %s/%s\n", runtime.GOOS, runtime.GOARCH)
	go runtime.Exit(0)
	return "halted", io.EOF
}
