// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"testing"
)

func TestStatusClass(t *testing.T) {
	statuses := []Status{
		EFI_SUCCESS,
		EFI_WARN_UNKNOWN_GLYPH,
		EFI_WARN_RESET_REQUIRED,
		0x1000,
		EFI_LOAD_ERROR,
		EFI_NOT_READY,
		EFI_HTTP_ERROR,
		errorMask,
		errorMask | 0xffff,
		^Status(0),
	}

	for _, s := range statuses {
		n := 0

		if s.Class() == Success {
			n++
		}

		if s.IsWarning() {
			n++
		}

		if s.IsError() {
			n++
		}

		if n != 1 {
			t.Fatalf("%s belongs to %d classes", s, n)
		}

		err := s.Err()

		if s.IsError() != (err != nil) {
			t.Fatalf("%s has inconsistent error %v", s, err)
		}
	}
}

func TestStatusErr(t *testing.T) {
	if err := EFI_WARN_UNKNOWN_GLYPH.Err(); err != nil {
		t.Fatalf("warning returned error %v", err)
	}

	if err := EFI_BUFFER_TOO_SMALL.Err(); !errors.Is(err, ErrBufferTooSmall) {
		t.Fatalf("unexpected error %v", err)
	}

	if err := parseStatus(uint64(EFI_NOT_FOUND)); err != ErrNotFound {
		t.Fatalf("unexpected error %v", err)
	}

	err := Status(errorMask | 0xabc).Err()

	if !errors.Is(err, ErrUnknown) {
		t.Fatalf("undefined error %v does not match ErrUnknown", err)
	}

	if errors.Is(ErrNotFound, ErrUnknown) {
		t.Fatal("defined error matches ErrUnknown")
	}

	var e *Error

	if !errors.As(err, &e) || e.Status != errorMask|0xabc {
		t.Fatal("undefined error does not carry its status")
	}
}

func TestStatusString(t *testing.T) {
	if s := EFI_ACCESS_DENIED.String(); s != "EFI_ACCESS_DENIED" {
		t.Fatalf("unexpected name %s", s)
	}

	if s := Status(0x1000).String(); s != "EFI_WARN(0x1000)" {
		t.Fatalf("unexpected name %s", s)
	}
}
