// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

var EFI_LOADED_IMAGE_PROTOCOL_GUID = MustParseGUID("5b1b31a1-9562-11d2-8e3f-00a0c969723b")

const EFI_LOADED_IMAGE_PROTOCOL_REVISION = 0x1000

// LoadedImageInfo represents the EFI Loaded Image Protocol structure.
type LoadedImageInfo struct {
	Revision        uint32
	_               uint32
	ParentHandle    uint64
	SystemTable     uint64
	DeviceHandle    uint64
	FilePath        uint64
	Reserved        uint64
	LoadOptionsSize uint32
	_               uint32
	LoadOptions     uint64
	ImageBase       uint64
	ImageSize       uint64
	ImageCodeType   MemoryType
	ImageDataType   MemoryType
	Unload          uint64
}

// LoadedImage represents an EFI Loaded Image Protocol instance.
type LoadedImage struct {
	LoadedImageInfo

	iface *Interface
}

// GUID returns the EFI Loaded Image Protocol identifier.
func (li *LoadedImage) GUID() GUID {
	return EFI_LOADED_IMAGE_PROTOCOL_GUID
}

// Bind associates the protocol instance with its firmware interface.
func (li *LoadedImage) Bind(iface *Interface) (err error) {
	if err = iface.Decode(&li.LoadedImageInfo); err != nil {
		return
	}

	li.iface = iface

	return
}

// Arguments returns the image load options interpreted as a UCS-2 command
// line.
func (li *LoadedImage) Arguments() (string, error) {
	if li.LoadOptions == 0 || li.LoadOptionsSize == 0 {
		return "", nil
	}

	buf, err := li.iface.Memory(li.LoadOptions, int(li.LoadOptionsSize))

	if err != nil {
		return "", err
	}

	return fromUTF16(buf), nil
}

// Path returns the device path of the image file.
func (li *LoadedImage) Path() ([]*DevicePathNode, error) {
	return walkDevicePath(li.iface, li.FilePath)
}
