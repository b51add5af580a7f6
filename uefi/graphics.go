// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

var EFI_GRAPHICS_OUTPUT_PROTOCOL_GUID = MustParseGUID("9042a9de-23dc-4a38-96fb-7aded080516a")

// EFI Graphics Output Protocol offsets
const (
	setMode = 0x08
	blt     = 0x10
)

type BltOperation int

// EFI_GRAPHICS_OUTPUT_BLT_OPERATION
const (
	EfiBltVideoFill = iota
	EfiBltVideoToBltBuffer
	EfiBltBufferToVideo
	EfiBltVideoToVideo
	EfiGraphicsOutputBltOperationMax
)

// ModeInformation represents an EFI Graphics Output Mode Information instance.
type ModeInformation struct {
	Version              uint32
	HorizontalResolution uint32
	VerticalResolution   uint32
	PixelFormat          uint32
	RedMask              uint32
	GreenMask            uint32
	BlueMask             uint32
	ReservedMask         uint32
	PixelsPerScanLine    uint32
}

// ProtocolMode represents an EFI Graphics Output Protocol Mode instance.
type ProtocolMode struct {
	MaxMode         uint32
	Mode            uint32
	Info            uint64
	SizeOfInfo      uint64
	FrameBufferBase uint64
	FrameBufferSize uint64
}

// GraphicsOutput represents an EFI Graphics Output Protocol instance.
type GraphicsOutput struct {
	iface *Interface
	mode  uint64
}

// GUID returns the EFI Graphics Output Protocol identifier.
func (gop *GraphicsOutput) GUID() GUID {
	return EFI_GRAPHICS_OUTPUT_PROTOCOL_GUID
}

// Bind associates the protocol instance with its firmware interface.
func (gop *GraphicsOutput) Bind(iface *Interface) (err error) {
	var data struct {
		QueryMode uint64
		SetMode   uint64
		Blt       uint64
		Mode      uint64
	}

	if err = iface.Decode(&data); err != nil {
		return
	}

	gop.iface = iface
	gop.mode = data.Mode

	return
}

// GetMode returns the EFI Graphics Output Mode instance.
func (gop *GraphicsOutput) GetMode() (pm *ProtocolMode, err error) {
	pm = &ProtocolMode{}
	err = gop.iface.Read(gop.mode, pm)
	return
}

// GetInfo returns the EFI Graphics Output Mode information instance.
func (gop *GraphicsOutput) GetInfo(pm *ProtocolMode) (m *ModeInformation, err error) {
	m = &ModeInformation{}
	err = gop.iface.Read(pm.Info, m)
	return
}

// SetMode calls EFI_GRAPHICS_OUTPUT_PROTOCOL.SetMode().
func (gop *GraphicsOutput) SetMode(mode uint32) (err error) {
	_, err = gop.iface.Call(setMode,
		gop.iface.Address(),
		uint64(mode),
	)

	return
}

// Blt calls EFI_GRAPHICS_OUTPUT_PROTOCOL.Blt().
func (gop *GraphicsOutput) Blt(buf []byte, op BltOperation, srcX, srcY, dstX, dstY, width, height, delta uint64) (err error) {
	if op < 0 || op >= EfiGraphicsOutputBltOperationMax {
		return ErrInvalidParameter
	}

	_, err = gop.iface.Call(blt,
		gop.iface.Address(),
		buf,
		uint64(op),
		srcX,
		srcY,
		dstX,
		dstY,
		width,
		height,
		delta,
	)

	return
}
