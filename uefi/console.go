// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"io"
	"unicode/utf16"
)

const (
	// EFI ConIn/ConOut offset for Reset
	reset = 0x00
	// EFI ConOut offset for OutputString
	outputString = 0x08
	// EFI ConOut offset for ClearScreen
	clearScreen = 0x30
	// EFI ConIn offset for ReadKeyStroke
	readKeyStroke = 0x08
)

// InputKey represents an EFI Input Key descriptor.
type InputKey struct {
	ScanCode    uint16
	UnicodeChar [2]byte
}

// Console implements the [io.ReadWriter] interface over EFI Simple Text
// Input/Output protocol.
//
// The console is backed by EFI Boot Services, once these are exited output is
// silently discarded and input returns [io.EOF].
type Console struct {
	io.ReadWriter

	// ForceLine controls whether line feeds (LF) should be supplemented
	// with a carriage return (CR).
	ForceLine bool

	// ReplaceTabs controls whether Console I/O output should have Tab
	// characters replaced with a number of spaces.
	ReplaceTabs int

	// In and Out hold the EFI Simple Text Input/Output protocol
	// interface addresses.
	In  uint64
	Out uint64

	// LastStatus holds the status of the last console service invocation,
	// warnings (e.g. EFI_WARN_UNKNOWN_GLYPH) are not returned as errors.
	LastStatus Status

	fw    Firmware
	guard *guard
}

// NewConsole returns a console for the argument EFI Simple Text Input/Output
// protocol interfaces, usable before [Services.Init].
func NewConsole(fw Firmware, in uint64, out uint64) *Console {
	return &Console{
		ForceLine:   true,
		ReplaceTabs: 8,
		In:          in,
		Out:         out,
		fw:          fw,
	}
}

func (c *Console) active() bool {
	return c.fw != nil && (c.guard == nil || c.guard.Phase() == BootPhase)
}

// call invokes the protocol function at the argument address, false is
// returned without any call once EFI Boot Services have been exited.
func (c *Console) call(fn uint64, args ...any) bool {
	if c.fw == nil {
		return false
	}

	invoke := func() {
		c.LastStatus = Status(c.fw.Call(fn, args...))
	}

	if c.guard == nil {
		invoke()
		return true
	}

	return c.guard.do(invoke) == nil
}

// Input calls EFI_SIMPLE_TEXT_INPUT_PROTOCOL.ReadKeyStroke().
func (c *Console) Input(k *InputKey) (err error) {
	if c.In == 0 {
		return ErrUnsupported
	}

	buf := make([]byte, 4)

	if !c.call(c.In+readKeyStroke, c.In, buf) {
		return ErrUnsupported
	}

	if err = c.LastStatus.Err(); err != nil {
		return
	}

	return unmarshalBinary(buf, k)
}

// Output calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.OutputString() with the
// argument UCS-2 string, a null terminator is appended if missing.
func (c *Console) Output(p []byte) (err error) {
	if len(p) == 0 || c.Out == 0 {
		return
	}

	if len(p) < 2 || p[len(p)-2] != 0x00 || p[len(p)-1] != 0x00 {
		p = append(p, 0x00, 0x00)
	}

	if !c.call(c.Out+outputString, c.Out, p) {
		return
	}

	return c.LastStatus.Err()
}

// Reset calls EFI_SIMPLE_TEXT_INPUT_PROTOCOL.Reset() and
// EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.Reset().
func (c *Console) Reset(extendedVerification bool) (err error) {
	var ext uint64

	if extendedVerification {
		ext = 1
	}

	if c.In != 0 && c.call(c.In+reset, c.In, ext) {
		if err = c.LastStatus.Err(); err != nil {
			return
		}
	}

	if c.Out == 0 || !c.call(c.Out+reset, c.Out, ext) {
		return
	}

	return c.LastStatus.Err()
}

// ClearScreen calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.ClearScreen().
func (c *Console) ClearScreen() (err error) {
	if c.Out == 0 || !c.call(c.Out+clearScreen, c.Out) {
		return
	}

	return c.LastStatus.Err()
}

// Read available data to buffer from console.
func (c *Console) Read(p []byte) (n int, err error) {
	k := &InputKey{}

	if !c.active() {
		return 0, io.EOF
	}

	for n = 0; n+2 <= len(p); n += 2 {
		switch err = c.Input(k); err {
		case nil:
			copy(p[n:], k.UnicodeChar[:])
		case ErrNotReady:
			return n, nil
		default:
			return
		}
	}

	return
}

// Write data from buffer to console.
func (c *Console) Write(p []byte) (n int, err error) {
	var s []byte

	if len(p) == 0 {
		return
	}

	// We receive an UTF-8 string but we can output only UTF-16 ones.
	b := utf16.Encode([]rune(string(p)))

	for _, r := range b {
		if r == 0x09 && c.ReplaceTabs > 0 { // Tab
			for i := 0; i < c.ReplaceTabs; i++ {
				s = append(s, []byte{0x20, 0x00}...) // Space
			}
			continue
		}

		s = append(s, byte(r&0xff))
		s = append(s, byte(r>>8))

		if r == 0x0a && c.ForceLine { // LF
			s = append(s, []byte{0x0d, 0x00}...) // CR
		}
	}

	if err = c.Output(s); err != nil {
		return
	}

	return len(p), nil
}
