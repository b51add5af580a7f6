// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/usbarmory/go-uefi/shell"
	"github.com/usbarmory/go-uefi/uefi"
)

const guidPattern = `[[:xdigit:]]{8}-[[:xdigit:]]{4}-[[:xdigit:]]{4}-[[:xdigit:]]{4}-[[:xdigit:]]{12}`

// exitHooks release the resources bound to EFI Boot Services before these
// are exited.
var exitHooks []func() error

// allocations holds the pages allocated with the alloc command.
var allocations = make(map[uint64]*uefi.Pages)

var protocolNames = map[uefi.GUID]string{
	uefi.EFI_LOADED_IMAGE_PROTOCOL_GUID:    "EFI_LOADED_IMAGE_PROTOCOL",
	uefi.EFI_DEVICE_PATH_PROTOCOL_GUID:     "EFI_DEVICE_PATH_PROTOCOL",
	uefi.EFI_SIMPLE_NETWORK_PROTOCOL_GUID:  "EFI_SIMPLE_NETWORK_PROTOCOL",
	uefi.EFI_GRAPHICS_OUTPUT_PROTOCOL_GUID: "EFI_GRAPHICS_OUTPUT_PROTOCOL",
	uefi.ACPI_20_TABLE_GUID:                "ACPI_20_TABLE",
	uefi.ACPI_TABLE_GUID:                   "ACPI_TABLE",
	uefi.SMBIOS_TABLE_GUID:                 "SMBIOS_TABLE",
	uefi.SMBIOS3_TABLE_GUID:                "SMBIOS3_TABLE",
}

func init() {
	shell.Add(shell.Cmd{
		Name: "uefi",
		Help: "UEFI information",
		Fn:   uefiCmd,
	})

	shell.Add(shell.Cmd{
		Name: "memmap",
		Help: "EFI_BOOT_SERVICES.GetMemoryMap()",
		Fn:   memmapCmd,
	})

	shell.Add(shell.Cmd{
		Name: "e820",
		Help: "EFI_BOOT_SERVICES.GetMemoryMap() in E820 format",
		Fn:   e820Cmd,
	})

	shell.Add(shell.Cmd{
		Name:    "alloc",
		Args:    2,
		Pattern: regexp.MustCompile(`^alloc ([[:xdigit:]]+) (\d+)$`),
		Syntax:  "<hex address> <size>",
		Help:    "EFI_BOOT_SERVICES.AllocatePages()",
		Fn:      allocCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "free",
		Args:    1,
		Pattern: regexp.MustCompile(`^free ([[:xdigit:]]+)$`),
		Syntax:  "<hex address>",
		Help:    "EFI_BOOT_SERVICES.FreePages()",
		Fn:      freeCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "pool",
		Args:    1,
		Pattern: regexp.MustCompile(`^pool (\d+)$`),
		Syntax:  "<size>",
		Help:    "EFI_BOOT_SERVICES.AllocatePool() and FreePool()",
		Fn:      poolCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "handles",
		Args:    1,
		Pattern: regexp.MustCompile(`^handles (` + guidPattern + `)$`),
		Syntax:  "<registry format GUID>",
		Help:    "EFI_BOOT_SERVICES.LocateHandle()",
		Fn:      handlesCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "protocols",
		Args:    1,
		Pattern: regexp.MustCompile(`^protocols ([[:xdigit:]]+)$`),
		Syntax:  "<hex handle>",
		Help:    "EFI_BOOT_SERVICES.ProtocolsPerHandle()",
		Fn:      protocolsCmd,
	})

	shell.Add(shell.Cmd{
		Name: "image",
		Help: "EFI_LOADED_IMAGE_PROTOCOL information",
		Fn:   imageCmd,
	})

	shell.Add(shell.Cmd{
		Name: "exitbs",
		Help: "EFI_BOOT_SERVICES.ExitBootServices()",
		Fn:   exitBootServicesCmd,
	})
}

func bootServices(iface *shell.Interface) (*uefi.BootServices, error) {
	if iface == nil || iface.UEFI == nil {
		return nil, errors.New("EFI services are not available")
	}

	return iface.UEFI.BootServices()
}

func releaseBootServices() (err error) {
	for _, hook := range exitHooks {
		if err = hook(); err != nil {
			return
		}
	}

	return
}

func parseHex(s string, name string) (uint64, error) {
	n, err := strconv.ParseUint(s, 16, 64)

	if err != nil {
		return 0, fmt.Errorf("invalid %s, %v", name, err)
	}

	return n, nil
}

func guidName(guid uefi.GUID) string {
	if name, ok := protocolNames[guid]; ok {
		return name
	}

	return guid.String()
}

func uefiCmd(iface *shell.Interface, _ []string) (res string, err error) {
	var buf bytes.Buffer

	if iface.UEFI == nil || iface.UEFI.SystemTable == nil {
		return "", errors.New("EFI services are not available")
	}

	s := iface.UEFI
	t := s.SystemTable

	vendor, _ := s.FirmwareVendor()

	fmt.Fprintf(&buf, "Firmware Vendor ....: %s\n", vendor)
	fmt.Fprintf(&buf, "Firmware Revision ..: %#x\n", t.FirmwareRevision)
	fmt.Fprintf(&buf, "UEFI Revision ......: %d.%d\n", t.Header.Major(), t.Header.Minor()/10)

	if err := s.CheckRevision(); err != nil {
		fmt.Fprintf(&buf, "Revision Warning ...: %v\n", err)
	}

	fmt.Fprintf(&buf, "Runtime Services  ..: %#x\n", t.RuntimeServices)
	fmt.Fprintf(&buf, "Boot Services ......: %#x\n", t.BootServices)
	fmt.Fprintf(&buf, "Phase ..............: %s\n", s.Phase())

	if bs, err := s.BootServices(); err == nil {
		if gop, err := uefi.LocateProtocol[uefi.GraphicsOutput](bs); err == nil {
			if pm, err := gop.Protocol().GetMode(); err == nil {
				if m, err := gop.Protocol().GetInfo(pm); err == nil {
					fmt.Fprintf(&buf, "Frame Buffer .......: %dx%d @ %#x\n",
						m.HorizontalResolution, m.VerticalResolution, pm.FrameBufferBase)
				}
			}

			if err = gop.Close(); err != nil {
				return "", err
			}
		}
	}

	fmt.Fprintf(&buf, "Configuration Tables: %#x\n", t.ConfigurationTable)

	if c, err := s.ConfigurationTables(); err == nil {
		for _, t := range c {
			fmt.Fprintf(&buf, "  %s (%#x)\n", guidName(t.GUID), t.VendorTable)
		}
	}

	return buf.String(), nil
}

func memmapCmd(iface *shell.Interface, _ []string) (res string, err error) {
	var buf bytes.Buffer
	var bs *uefi.BootServices
	var memoryMap *uefi.MemoryMap

	if bs, err = bootServices(iface); err != nil {
		return
	}

	if memoryMap, err = bs.GetMemoryMap(); err != nil {
		return
	}

	fmt.Fprintf(&buf, "Type                Start            End              Pages            Size      Attributes\n")

	for _, desc := range memoryMap.Descriptors {
		fmt.Fprintf(&buf, "%-19s %016x %016x %016x %-9s %016x\n",
			desc.Type, desc.PhysicalStart, desc.PhysicalEnd()-1, desc.NumberOfPages,
			humanize.IBytes(uint64(desc.Size())), desc.Attribute)
	}

	fmt.Fprintf(&buf, "Total: %s (%d descriptors, key %#x)",
		humanize.IBytes(memoryMap.Pages()*uefi.PageSize), len(memoryMap.Descriptors), memoryMap.MapKey)

	return buf.String(), nil
}

func e820Cmd(iface *shell.Interface, _ []string) (res string, err error) {
	var buf bytes.Buffer
	var bs *uefi.BootServices
	var memoryMap *uefi.MemoryMap

	if bs, err = bootServices(iface); err != nil {
		return
	}

	if memoryMap, err = bs.GetMemoryMap(); err != nil {
		return
	}

	entries, err := memoryMap.E820()

	if err != nil {
		return
	}

	fmt.Fprintf(&buf, "Start            End              Type\n")

	for _, e := range entries {
		fmt.Fprintf(&buf, "%016x %016x %d\n", e.Addr, e.Addr+e.Size-1, e.MemType)
	}

	return buf.String(), nil
}

func allocCmd(iface *shell.Interface, arg []string) (res string, err error) {
	var bs *uefi.BootServices
	var p *uefi.Pages

	addr, err := parseHex(arg[0], "address")

	if err != nil {
		return
	}

	size, err := strconv.ParseUint(arg[1], 10, 64)

	if err != nil {
		return "", fmt.Errorf("invalid size, %v", err)
	}

	if bs, err = bootServices(iface); err != nil {
		return
	}

	allocateType := uefi.AllocateAddress

	if addr == 0 {
		allocateType = uefi.AllocateAnyPages
	}

	pages := int((size + uefi.PageSize - 1) / uefi.PageSize)

	log.Printf("allocating %d pages at %#08x", pages, addr)

	if p, err = bs.AllocatePages(allocateType, uefi.EfiLoaderData, pages, addr); err != nil {
		return
	}

	allocations[p.Address()] = p

	return fmt.Sprintf("allocated %s at %#08x", humanize.IBytes(uint64(p.Len())), p.Address()), nil
}

func freeCmd(_ *shell.Interface, arg []string) (res string, err error) {
	addr, err := parseHex(arg[0], "address")

	if err != nil {
		return
	}

	p, ok := allocations[addr]

	if !ok {
		return "", fmt.Errorf("no allocation at %#08x", addr)
	}

	if err = p.Free(); err != nil {
		return
	}

	delete(allocations, addr)

	return
}

func poolCmd(iface *shell.Interface, arg []string) (res string, err error) {
	var bs *uefi.BootServices
	var p *uefi.Pool

	size, err := strconv.Atoi(arg[0])

	if err != nil {
		return "", fmt.Errorf("invalid size, %v", err)
	}

	if bs, err = bootServices(iface); err != nil {
		return
	}

	if p, err = bs.AllocatePool(uefi.EfiLoaderData, size); err != nil {
		return
	}

	res = fmt.Sprintf("allocated %s at %#08x", humanize.IBytes(uint64(p.Len())), p.Address())

	return res, p.Free()
}

func handlesCmd(iface *shell.Interface, arg []string) (res string, err error) {
	var buf bytes.Buffer
	var bs *uefi.BootServices
	var handles []uefi.Handle

	guid, err := uefi.ParseGUID(arg[0])

	if err != nil {
		return
	}

	if bs, err = bootServices(iface); err != nil {
		return
	}

	if handles, err = bs.LocateHandle(guid); err != nil {
		return
	}

	for _, h := range handles {
		fmt.Fprintf(&buf, "%#016x\n", uint64(h))
	}

	return buf.String(), nil
}

func protocolsCmd(iface *shell.Interface, arg []string) (res string, err error) {
	var buf bytes.Buffer
	var bs *uefi.BootServices
	var guids []uefi.GUID

	handle, err := parseHex(arg[0], "handle")

	if err != nil {
		return
	}

	if bs, err = bootServices(iface); err != nil {
		return
	}

	if guids, err = bs.ProtocolsPerHandle(uefi.Handle(handle)); err != nil {
		return
	}

	for _, guid := range guids {
		fmt.Fprintf(&buf, "%s\n", guidName(guid))
	}

	return buf.String(), nil
}

func imageCmd(iface *shell.Interface, _ []string) (res string, err error) {
	var buf bytes.Buffer
	var bs *uefi.BootServices

	if bs, err = bootServices(iface); err != nil {
		return
	}

	c, err := uefi.OpenProtocol[uefi.LoadedImage](bs, bs.ImageHandle(), uefi.EFI_OPEN_PROTOCOL_GET_PROTOCOL)

	if err != nil {
		return
	}

	defer func() {
		if e := c.Close(); err == nil {
			err = e
		}
	}()

	li := c.Protocol()

	fmt.Fprintf(&buf, "Image Base .........: %#x\n", li.ImageBase)
	fmt.Fprintf(&buf, "Image Size .........: %s\n", humanize.IBytes(li.ImageSize))
	fmt.Fprintf(&buf, "Code/Data Type .....: %s/%s\n", li.ImageCodeType, li.ImageDataType)
	fmt.Fprintf(&buf, "Device Handle ......: %#x\n", li.DeviceHandle)

	if nodes, err := li.Path(); err == nil {
		fmt.Fprintf(&buf, "File Path ..........: %s\n", uefi.FormatDevicePath(nodes))
	}

	if args, err := li.Arguments(); err == nil && len(args) > 0 {
		fmt.Fprintf(&buf, "Load Options .......: %s\n", args)
	}

	return buf.String(), nil
}

func exitBootServicesCmd(iface *shell.Interface, _ []string) (res string, err error) {
	var memoryMap *uefi.MemoryMap

	if _, err = bootServices(iface); err != nil {
		return
	}

	if err = releaseBootServices(); err != nil {
		return
	}

	log.Printf("exiting EFI Boot Services")

	if memoryMap, err = iface.UEFI.ExitBootServices(); err != nil {
		return
	}

	// console output is no longer available
	return fmt.Sprintf("exited EFI Boot Services (%d descriptors)", len(memoryMap.Descriptors)), nil
}
