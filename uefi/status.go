// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
)

// Status represents an EFI_STATUS value.
type Status uint64

const errorMask = 1 << 63

// Class represents the classification of an EFI_STATUS value.
type Class int

// EFI_STATUS classes
const (
	Success Class = iota
	Warning
	Failure
)

// EFI_STATUS success and warning codes
// https://uefi.org/specs/UEFI/2.10/Apx_D_Status_Codes.html
const (
	EFI_SUCCESS               Status = 0
	EFI_WARN_UNKNOWN_GLYPH    Status = 1
	EFI_WARN_DELETE_FAILURE   Status = 2
	EFI_WARN_WRITE_FAILURE    Status = 3
	EFI_WARN_BUFFER_TOO_SMALL Status = 4
	EFI_WARN_STALE_DATA       Status = 5
	EFI_WARN_FILE_SYSTEM      Status = 6
	EFI_WARN_RESET_REQUIRED   Status = 7
)

// EFI_STATUS error codes
const (
	EFI_LOAD_ERROR           Status = errorMask | 1
	EFI_INVALID_PARAMETER    Status = errorMask | 2
	EFI_UNSUPPORTED          Status = errorMask | 3
	EFI_BAD_BUFFER_SIZE      Status = errorMask | 4
	EFI_BUFFER_TOO_SMALL     Status = errorMask | 5
	EFI_NOT_READY            Status = errorMask | 6
	EFI_DEVICE_ERROR         Status = errorMask | 7
	EFI_WRITE_PROTECTED      Status = errorMask | 8
	EFI_OUT_OF_RESOURCES     Status = errorMask | 9
	EFI_VOLUME_CORRUPTED     Status = errorMask | 10
	EFI_VOLUME_FULL          Status = errorMask | 11
	EFI_NO_MEDIA             Status = errorMask | 12
	EFI_MEDIA_CHANGED        Status = errorMask | 13
	EFI_NOT_FOUND            Status = errorMask | 14
	EFI_ACCESS_DENIED        Status = errorMask | 15
	EFI_NO_RESPONSE          Status = errorMask | 16
	EFI_NO_MAPPING           Status = errorMask | 17
	EFI_TIMEOUT              Status = errorMask | 18
	EFI_NOT_STARTED          Status = errorMask | 19
	EFI_ALREADY_STARTED      Status = errorMask | 20
	EFI_ABORTED              Status = errorMask | 21
	EFI_ICMP_ERROR           Status = errorMask | 22
	EFI_TFTP_ERROR           Status = errorMask | 23
	EFI_PROTOCOL_ERROR       Status = errorMask | 24
	EFI_INCOMPATIBLE_VERSION Status = errorMask | 25
	EFI_SECURITY_VIOLATION   Status = errorMask | 26
	EFI_CRC_ERROR            Status = errorMask | 27
	EFI_END_OF_MEDIA         Status = errorMask | 28
	EFI_END_OF_FILE          Status = errorMask | 31
	EFI_INVALID_LANGUAGE     Status = errorMask | 32
	EFI_COMPROMISED_DATA     Status = errorMask | 33
	EFI_IP_ADDRESS_CONFLICT  Status = errorMask | 34
	EFI_HTTP_ERROR           Status = errorMask | 35
)

var statusNames = map[Status]string{
	EFI_SUCCESS:               "EFI_SUCCESS",
	EFI_WARN_UNKNOWN_GLYPH:    "EFI_WARN_UNKNOWN_GLYPH",
	EFI_WARN_DELETE_FAILURE:   "EFI_WARN_DELETE_FAILURE",
	EFI_WARN_WRITE_FAILURE:    "EFI_WARN_WRITE_FAILURE",
	EFI_WARN_BUFFER_TOO_SMALL: "EFI_WARN_BUFFER_TOO_SMALL",
	EFI_WARN_STALE_DATA:       "EFI_WARN_STALE_DATA",
	EFI_WARN_FILE_SYSTEM:      "EFI_WARN_FILE_SYSTEM",
	EFI_WARN_RESET_REQUIRED:   "EFI_WARN_RESET_REQUIRED",
}

// Error represents a failed EFI service call.
type Error struct {
	// Status is the raw EFI_STATUS returned by the firmware.
	Status Status

	msg string
}

// Error returns the error description.
func (e *Error) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("unknown EFI_STATUS error %#x", uint64(e.Status))
	}

	return fmt.Sprintf("%s (%s)", e.msg, statusNames[e.Status])
}

// Is allows matching an error against the package sentinels with
// [errors.Is], undefined codes match [ErrUnknown].
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Status == e.Status
	}

	return target == ErrUnknown && e.msg == ""
}

var errorMap = make(map[Status]*Error)

func newError(status Status, name string, msg string) *Error {
	err := &Error{
		Status: status,
		msg:    msg,
	}

	statusNames[status] = name
	errorMap[status] = err

	return err
}

// ErrUnknown is matched by errors carrying an EFI_STATUS error code not
// defined by the UEFI specification.
var ErrUnknown = errors.New("unknown EFI_STATUS error")

var (
	ErrLoadError           = newError(EFI_LOAD_ERROR, "EFI_LOAD_ERROR", "image failed to load")
	ErrInvalidParameter    = newError(EFI_INVALID_PARAMETER, "EFI_INVALID_PARAMETER", "a parameter was incorrect")
	ErrUnsupported         = newError(EFI_UNSUPPORTED, "EFI_UNSUPPORTED", "operation not supported")
	ErrBadBufferSize       = newError(EFI_BAD_BUFFER_SIZE, "EFI_BAD_BUFFER_SIZE", "buffer size incorrect for request")
	ErrBufferTooSmall      = newError(EFI_BUFFER_TOO_SMALL, "EFI_BUFFER_TOO_SMALL", "buffer too small")
	ErrNotReady            = newError(EFI_NOT_READY, "EFI_NOT_READY", "no data pending")
	ErrDeviceError         = newError(EFI_DEVICE_ERROR, "EFI_DEVICE_ERROR", "physical device reported an error")
	ErrWriteProtected      = newError(EFI_WRITE_PROTECTED, "EFI_WRITE_PROTECTED", "device is write-protected")
	ErrOutOfResources      = newError(EFI_OUT_OF_RESOURCES, "EFI_OUT_OF_RESOURCES", "out of resources")
	ErrVolumeCorrupted     = newError(EFI_VOLUME_CORRUPTED, "EFI_VOLUME_CORRUPTED", "file system inconsistency detected")
	ErrVolumeFull          = newError(EFI_VOLUME_FULL, "EFI_VOLUME_FULL", "no more space on file system")
	ErrNoMedia             = newError(EFI_NO_MEDIA, "EFI_NO_MEDIA", "device contains no medium")
	ErrMediaChanged        = newError(EFI_MEDIA_CHANGED, "EFI_MEDIA_CHANGED", "medium changed since last access")
	ErrNotFound            = newError(EFI_NOT_FOUND, "EFI_NOT_FOUND", "item not found")
	ErrAccessDenied        = newError(EFI_ACCESS_DENIED, "EFI_ACCESS_DENIED", "access denied")
	ErrNoResponse          = newError(EFI_NO_RESPONSE, "EFI_NO_RESPONSE", "server not found or no response")
	ErrNoMapping           = newError(EFI_NO_MAPPING, "EFI_NO_MAPPING", "no device mapping exists")
	ErrTimeout             = newError(EFI_TIMEOUT, "EFI_TIMEOUT", "timeout expired")
	ErrNotStarted          = newError(EFI_NOT_STARTED, "EFI_NOT_STARTED", "protocol not started")
	ErrAlreadyStarted      = newError(EFI_ALREADY_STARTED, "EFI_ALREADY_STARTED", "protocol already started")
	ErrAborted             = newError(EFI_ABORTED, "EFI_ABORTED", "operation aborted")
	ErrICMPError           = newError(EFI_ICMP_ERROR, "EFI_ICMP_ERROR", "ICMP error during network operation")
	ErrTFTPError           = newError(EFI_TFTP_ERROR, "EFI_TFTP_ERROR", "TFTP error during network operation")
	ErrProtocolError       = newError(EFI_PROTOCOL_ERROR, "EFI_PROTOCOL_ERROR", "protocol error during network operation")
	ErrIncompatibleVersion = newError(EFI_INCOMPATIBLE_VERSION, "EFI_INCOMPATIBLE_VERSION", "requested version incompatible")
	ErrSecurityViolation   = newError(EFI_SECURITY_VIOLATION, "EFI_SECURITY_VIOLATION", "security violation")
	ErrCRCError            = newError(EFI_CRC_ERROR, "EFI_CRC_ERROR", "CRC error detected")
	ErrEndOfMedia          = newError(EFI_END_OF_MEDIA, "EFI_END_OF_MEDIA", "beginning or end of media reached")
	ErrEndOfFile           = newError(EFI_END_OF_FILE, "EFI_END_OF_FILE", "end of file reached")
	ErrInvalidLanguage     = newError(EFI_INVALID_LANGUAGE, "EFI_INVALID_LANGUAGE", "invalid language specified")
	ErrCompromisedData     = newError(EFI_COMPROMISED_DATA, "EFI_COMPROMISED_DATA", "data security status unknown or compromised")
	ErrIPAddressConflict   = newError(EFI_IP_ADDRESS_CONFLICT, "EFI_IP_ADDRESS_CONFLICT", "IP address conflict detected")
	ErrHTTPError           = newError(EFI_HTTP_ERROR, "EFI_HTTP_ERROR", "HTTP error during network operation")
)

// Class returns the status classification, every value belongs to exactly
// one class.
func (s Status) Class() Class {
	switch {
	case s == EFI_SUCCESS:
		return Success
	case s&errorMask != 0:
		return Failure
	default:
		return Warning
	}
}

// IsWarning reports whether the status indicates success with a caveat.
func (s Status) IsWarning() bool {
	return s.Class() == Warning
}

// IsError reports whether the status indicates a failure.
func (s Status) IsError() bool {
	return s.Class() == Failure
}

// Err returns the error corresponding to a failure status, success and
// warnings return nil.
func (s Status) Err() error {
	if s.Class() != Failure {
		return nil
	}

	if err, ok := errorMap[s]; ok {
		return err
	}

	return &Error{Status: s}
}

// String returns the status symbolic name, or its numeric value when the
// status is not defined by the UEFI specification.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}

	switch s.Class() {
	case Warning:
		return fmt.Sprintf("EFI_WARN(%#x)", uint64(s))
	default:
		return fmt.Sprintf("EFI_ERROR(%#x)", uint64(s))
	}
}

func parseStatus(status uint64) (err error) {
	return Status(status).Err()
}
