/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

// Package resources parses just enough of resources.arsc (Android's
// compiled resource table) to resolve string-pool references that can
// appear as manifest attribute values, such as a localized android:label
// attribute. It is deliberately partial: package/type/spec
// chunks are walked only far enough to find the next chunk, never decoded
// into a full resource-id index, because nothing in the core flow analyzer
// needs more than this.
package resources

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/mixL1nk/dexlens/internal/restbl"
)

// ResourceKind discriminates the coarse value shapes an ARSC entry can
// carry.
type ResourceKind int

const (
	ResourceKindUnknown ResourceKind = iota
	ResourceKindString
	ResourceKindInt
	ResourceKindBool
	ResourceKindReference
)

// Resource describes one resource-table entry by id, value kind, and value
// text; it carries no type or entry name. Nothing in this package produces
// Resource values: ParseStringPool does not walk the per-type entry tables
// and returns only the package name and the global string pool.
type Resource struct {
	ID    uint32
	Kind  ResourceKind
	Value string
}

// Table is the result of a best-effort resources.arsc parse: the package
// name (if recovered) and the decoded global string pool, which is what
// every manifest string reference ultimately resolves against.
type Table struct {
	PackageName string
	Strings     restbl.StringPool
}

// chunk type tags (android.util.TypedValue / ResourceTypes.h).
const (
	chunkResTable   = 0x0002
	chunkStringPool = 0x0001
	chunkResPackage = 0x0200
)

type chunkHeader struct {
	Type      uint16
	HeaderLen uint16
	Size      uint32
}

func readChunkHeader(data []byte) (chunkHeader, error) {
	if len(data) < 8 {
		return chunkHeader{}, fmt.Errorf("resources: chunk header truncated")
	}
	return chunkHeader{
		Type:      binary.LittleEndian.Uint16(data[0:2]),
		HeaderLen: binary.LittleEndian.Uint16(data[2:4]),
		Size:      binary.LittleEndian.Uint32(data[4:8]),
	}, nil
}

// ParseStringPool decodes resources.arsc's top-level RES_TABLE_TYPE header,
// locates its global string pool chunk, and decodes that pool with the same
// routine the AXML decoder uses. Package chunks beyond
// the string pool are skipped over, not decoded.
func ParseStringPool(data []byte) (*Table, error) {
	top, err := readChunkHeader(data)
	if err != nil {
		return nil, fmt.Errorf("resources.ParseStringPool: %w", err)
	}
	if top.Type != chunkResTable {
		return nil, fmt.Errorf("resources.ParseStringPool: unexpected top-level chunk type 0x%04x", top.Type)
	}

	pos := int(top.HeaderLen)
	end := len(data)
	if int(top.Size) < end {
		end = int(top.Size)
	}

	table := &Table{}
	found := false

	for pos < end {
		ch, err := readChunkHeader(data[pos:])
		if err != nil {
			return nil, fmt.Errorf("resources.ParseStringPool: %w", err)
		}
		if ch.Size == 0 || pos+int(ch.Size) > len(data) {
			return nil, fmt.Errorf("resources.ParseStringPool: chunk at offset %d overruns buffer", pos)
		}

		switch ch.Type {
		case chunkStringPool:
			pool, err := restbl.Parse(data[pos+8 : pos+int(ch.Size)])
			if err != nil {
				return nil, fmt.Errorf("resources.ParseStringPool: %w", err)
			}
			table.Strings = pool
			found = true
		case chunkResPackage:
			// The package id and name live inside ResTable_package's own
			// extended header, so slice from just past the ResChunk_header,
			// not past HeaderLen.
			name, ok := readPackageName(data[pos+8 : pos+int(ch.Size)])
			if ok && table.PackageName == "" {
				table.PackageName = name
			}
			// Type/spec sub-chunks inside this package are not decoded;
			// the outer loop's pos += ch.Size skip covers the whole
			// package chunk in one step.
		}
		pos += int(ch.Size)
	}

	if !found {
		return nil, fmt.Errorf("resources.ParseStringPool: no string pool chunk found")
	}
	return table, nil
}

// readPackageName decodes ResTable_package's fixed-width UTF-16 name field.
// body starts right after the chunk header; the id (u32) precedes the
// 256-byte (128 UTF-16 code unit) name field.
func readPackageName(body []byte) (string, bool) {
	const nameOff = 4
	const nameLen = 128 // UTF-16 code units
	if len(body) < nameOff+nameLen*2 {
		return "", false
	}
	units := make([]uint16, 0, nameLen)
	for i := 0; i < nameLen; i++ {
		u := binary.LittleEndian.Uint16(body[nameOff+i*2:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	if len(units) == 0 {
		return "", false
	}
	return string(utf16.Decode(units)), true
}

// ResolveString looks up a string-pool index in the table's global pool,
// the same index space manifest attribute values (e.g. a @string/app_name
// android:label) reference.
func (t *Table) ResolveString(idx int32) (string, error) {
	return t.Strings.Get(idx)
}
