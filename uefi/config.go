// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"errors"
)

// Well-known EFI Configuration Table identifiers
var (
	ACPI_20_TABLE_GUID = MustParseGUID("8868e871-e4f1-11d3-bc22-0080c73c8881")
	ACPI_TABLE_GUID    = MustParseGUID("eb9d2d30-2d88-11d3-9a16-0090273fc14d")
	SMBIOS_TABLE_GUID  = MustParseGUID("eb9d2d31-2d88-11d3-9a16-0090273fc14d")
	SMBIOS3_TABLE_GUID = MustParseGUID("f2fd1544-9794-4a2c-992e-e5bbcf20e394")
)

// ConfigurationTable represents an EFI Configuration Table.
type ConfigurationTable struct {
	GUID        GUID
	VendorTable uint64
}

// ConfigurationTables returns the EFI Configuration Tables.
func (s *Services) ConfigurationTables() (c []*ConfigurationTable, err error) {
	d := s.SystemTable

	if d == nil || d.NumberOfTableEntries == 0 || d.ConfigurationTable == 0 {
		return nil, errors.New("EFI Configuration Table is invalid")
	}

	entrySize := binary.Size(&ConfigurationTable{})
	tableSize := entrySize * int(d.NumberOfTableEntries)

	buf, err := s.fw.Memory(d.ConfigurationTable, tableSize)

	if err != nil {
		return
	}

	for i := 0; i+entrySize <= len(buf); i += entrySize {
		t := &ConfigurationTable{}

		if err = unmarshalBinary(buf[i:i+entrySize], t); err != nil {
			return
		}

		c = append(c, t)
	}

	return
}

// LocateConfiguration locates an EFI Configuration Table.
func (s *Services) LocateConfiguration(guid GUID) (t *ConfigurationTable, err error) {
	var c []*ConfigurationTable

	if c, err = s.ConfigurationTables(); err != nil {
		return
	}

	for _, t := range c {
		if t.GUID == guid {
			return t, nil
		}
	}

	return nil, ErrNotFound
}
