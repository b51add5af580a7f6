// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && amd64

package cmd

import (
	_ "embed"
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"

	"github.com/u-root/u-root/pkg/boot/bzimage"

	"github.com/usbarmory/armory-boot/exec"
	"github.com/usbarmory/tamago/dma"

	"github.com/usbarmory/go-uefi/shell"
	"github.com/usbarmory/go-uefi/uefi"
)

// kernel loading area
const (
	memoryStart = 0x80000000
	memorySize  = 0x10000000
)

// CommandLine represents the Linux kernel boot parameters
var CommandLine = "console=ttyS0,115200,8n1\x00"

// remove trailing space below to embed
//
// go:embed bzImage
var bzImage []byte

func init() {
	shell.Add(shell.Cmd{
		Name:    "linux",
		Args:    1,
		Pattern: regexp.MustCompile(`^linux(.*)`),
		Syntax:  "(path)?",
		Help:    "boot Linux kernel bzImage",
		Fn:      linuxCmd,
	})
}

func findMemory(m []bzimage.E820Entry, start int, size int) (mem *dma.Region, err error) {
	for _, e := range m {
		if e.MemType != bzimage.RAM || e.Size < uint64(size) {
			continue
		}

		if uint64(start) < e.Addr || uint64(start)+uint64(size) > e.Addr+e.Size {
			continue
		}

		if mem, err = dma.NewRegion(uint(start), size, false); err != nil {
			return
		}

		log.Printf("allocating memory range %#08x - %#08x", start, start+size)
		mem.Reserve(size, 0)

		break
	}

	if mem == nil {
		err = errors.New("could not find memory for kernel loading")
	}

	return
}

func linuxCmd(iface *shell.Interface, arg []string) (res string, err error) {
	var bs *uefi.BootServices
	var memoryMap *uefi.MemoryMap
	var e820 []bzimage.E820Entry
	var mem *dma.Region
	var pages *uefi.Pages

	if path := strings.TrimSpace(arg[0]); len(path) != 0 {
		if bzImage, err = os.ReadFile(path); err != nil {
			return
		}
	}

	if len(bzImage) == 0 {
		return "", errors.New("missing kernel image")
	}

	if bs, err = bootServices(iface); err != nil {
		return
	}

	if memoryMap, err = bs.GetMemoryMap(); err != nil {
		return
	}

	if e820, err = memoryMap.E820(); err != nil {
		return
	}

	// find and reserve memory for kernel loading

	if mem, err = findMemory(e820, memoryStart, memorySize); err != nil {
		return
	}

	// free reserved memory in case of error
	defer mem.Release(mem.Start())

	n := (int(mem.Size()) + uefi.PageSize - 1) / uefi.PageSize

	if pages, err = bs.AllocatePages(uefi.AllocateAddress, uefi.EfiLoaderData, n, uint64(mem.Start())); err != nil {
		return
	}

	// free allocated pages in case of error
	defer pages.Free()

	image := &exec.LinuxImage{
		Memory:  e820,
		Region:  mem,
		Kernel:  bzImage,
		CmdLine: CommandLine,
	}

	log.Printf("loading kernel@%0.8x", mem.Start())

	if err = image.Load(); err != nil {
		return "", fmt.Errorf("could not load kernel, %v", err)
	}

	if err = releaseBootServices(); err != nil {
		return
	}

	cleanup := func() {
		log.Printf("exiting EFI boot services")

		if _, err := iface.UEFI.ExitBootServices(); err != nil {
			log.Printf("could not exit EFI boot services, %v\n", err)
		}
	}

	log.Printf("starting kernel@%0.8x", image.Entry())

	// does not return on success
	return "", image.Boot(cleanup)
}
