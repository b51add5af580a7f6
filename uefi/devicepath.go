// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"
)

var EFI_DEVICE_PATH_PROTOCOL_GUID = MustParseGUID("09576e91-6d3f-11d2-8e39-00a0c969723b")

// EFI Device Path node types
const (
	HardwareDevicePath  = 0x01
	ACPIDevicePath      = 0x02
	MessagingDevicePath = 0x03
	MediaDevicePath     = 0x04
	BBSDevicePath       = 0x05
	EndDevicePath       = 0x7f
)

// EFI Device Path node sub-types
const (
	EndEntireDevicePath   = 0xff
	EndInstanceDevicePath = 0x01

	MACAddressDevicePath = 0x0b
	IPv4DevicePath       = 0x0c
	FilePathDevicePath   = 0x04
)

const (
	// device path node header size
	nodeHeaderSize = 4
	// maximum number of nodes walked
	maxDevicePathNodes = 128
)

// DevicePathNode represents a generic EFI Device Path node.
type DevicePathNode struct {
	Type    uint8
	SubType uint8
	Data    []byte
}

// End reports whether the node terminates the device path.
func (n *DevicePathNode) End() bool {
	return n.Type == EndDevicePath && n.SubType == EndEntireDevicePath
}

// String returns the textual representation of the node.
func (n *DevicePathNode) String() string {
	switch {
	case n.Type == MediaDevicePath && n.SubType == FilePathDevicePath:
		return fromUTF16(n.Data)
	case n.Type == MessagingDevicePath && n.SubType == MACAddressDevicePath && len(n.Data) >= 6:
		return fmt.Sprintf("MAC(%s)", net.HardwareAddr(n.Data[0:6]))
	case n.Type == MessagingDevicePath && n.SubType == IPv4DevicePath && len(n.Data) >= 8:
		return fmt.Sprintf("IPv4(%s,%s)", net.IP(n.Data[4:8]), net.IP(n.Data[0:4]))
	case n.End():
		return "End"
	}

	return fmt.Sprintf("Path(%d,%d,%x)", n.Type, n.SubType, n.Data)
}

// DevicePath represents an EFI Device Path Protocol instance.
type DevicePath struct {
	iface *Interface
}

// GUID returns the EFI Device Path Protocol identifier.
func (dp *DevicePath) GUID() GUID {
	return EFI_DEVICE_PATH_PROTOCOL_GUID
}

// Bind associates the protocol instance with its firmware interface.
func (dp *DevicePath) Bind(iface *Interface) (err error) {
	dp.iface = iface
	return
}

// Nodes returns the device path nodes, the end node is not included.
func (dp *DevicePath) Nodes() ([]*DevicePathNode, error) {
	return walkDevicePath(dp.iface, dp.iface.Address())
}

// String returns the textual representation of the device path.
func (dp *DevicePath) String() string {
	nodes, err := dp.Nodes()

	if err != nil {
		return fmt.Sprintf("invalid device path (%v)", err)
	}

	return FormatDevicePath(nodes)
}

// FormatDevicePath returns the textual representation of a device path.
func FormatDevicePath(nodes []*DevicePathNode) string {
	var s []string

	for _, n := range nodes {
		s = append(s, n.String())
	}

	return strings.Join(s, "/")
}

func walkDevicePath(iface *Interface, addr uint64) (nodes []*DevicePathNode, err error) {
	if addr == 0 {
		return nil, ErrNotFound
	}

	for i := 0; i < maxDevicePathNodes; i++ {
		hdr, err := iface.Memory(addr, nodeHeaderSize)

		if err != nil {
			return nil, err
		}

		n := &DevicePathNode{
			Type:    hdr[0],
			SubType: hdr[1],
		}

		length := int(binary.LittleEndian.Uint16(hdr[2:4]))

		if length < nodeHeaderSize {
			return nil, fmt.Errorf("invalid device path node length (%d)", length)
		}

		if n.End() {
			return nodes, nil
		}

		if length > nodeHeaderSize {
			buf, err := iface.Memory(addr+nodeHeaderSize, length-nodeHeaderSize)

			if err != nil {
				return nil, err
			}

			n.Data = append([]byte{}, buf...)
		}

		nodes = append(nodes, n)
		addr += uint64(length)
	}

	return nil, fmt.Errorf("device path exceeds %d nodes", maxDevicePathNodes)
}
