/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

// Package restbl decodes the RES_STRING_POOL_TYPE chunk shared by Android's
// two binary resource formats: compiled AndroidManifest.xml (AXML) and
// resources.arsc (ARSC). Both embed the same chunk header and string-pool
// layout, so one routine serves the manifest package's AXML decoder and the
// resources package's ARSC reader.
package restbl

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// StringPool is a decoded string table, indexed by the pool index that
// other chunks (element names, attribute values, CDATA) reference.
type StringPool struct {
	Strings []string
}

// Get resolves a string-pool index, returning "" for the common -1/absent
// sentinel rather than an error (most callers treat a missing reference as
// "not present").
func (sp StringPool) Get(idx int32) (string, error) {
	if idx < 0 {
		return "", nil
	}
	if int(idx) >= len(sp.Strings) {
		return "", fmt.Errorf("restbl: string pool index %d out of range (%d entries)", idx, len(sp.Strings))
	}
	return sp.Strings[idx], nil
}

const utf8Flag = 1 << 8

// Parse decodes a RES_STRING_POOL_TYPE chunk body. body starts right after
// the 8-byte chunk header (type+headerSize+size already consumed) and runs
// to the end of the chunk.
func Parse(body []byte) (StringPool, error) {
	if len(body) < 20 {
		return StringPool{}, fmt.Errorf("restbl: string pool chunk too short")
	}
	stringCount := binary.LittleEndian.Uint32(body[0:4])
	flags := binary.LittleEndian.Uint32(body[8:12])
	stringsStart := binary.LittleEndian.Uint32(body[12:16])

	offsetsStart := 20
	offsetsEnd := offsetsStart + int(stringCount)*4
	if offsetsEnd > len(body) {
		return StringPool{}, fmt.Errorf("restbl: string pool offsets table truncated")
	}

	out := make([]string, stringCount)
	isUTF8 := flags&utf8Flag != 0
	// stringsStart is relative to the start of the whole chunk (including
	// the 8-byte header the caller already stripped), so offset by -8 here.
	base := int(stringsStart) - 8

	for i := uint32(0); i < stringCount; i++ {
		off := base + int(binary.LittleEndian.Uint32(body[offsetsStart+int(i)*4:]))
		if off < 0 || off >= len(body) {
			return StringPool{}, fmt.Errorf("restbl: string %d offset out of range", i)
		}
		s, err := decodeString(body[off:], isUTF8)
		if err != nil {
			return StringPool{}, fmt.Errorf("restbl: string %d: %w", i, err)
		}
		out[i] = s
	}
	return StringPool{Strings: out}, nil
}

// decodeString reads one length-prefixed string starting at data[0].
func decodeString(data []byte, isUTF8 bool) (string, error) {
	if isUTF8 {
		// UTF-8 pool strings carry a UTF-16 length (in characters) then a
		// UTF-8 length (in bytes), each 1 or 2 bytes depending on the high
		// bit of the first byte.
		_, n := readLen8(data)
		byteLen, n2 := readLen8(data[n:])
		start := n + n2
		end := start + byteLen
		if end > len(data) {
			return "", fmt.Errorf("utf-8 string body truncated")
		}
		return string(data[start:end]), nil
	}

	charLen, n := readLen16(data)
	start := n
	end := start + charLen*2
	if end > len(data) {
		return "", fmt.Errorf("utf-16 string body truncated")
	}
	units := make([]uint16, charLen)
	for i := 0; i < charLen; i++ {
		units[i] = binary.LittleEndian.Uint16(data[start+i*2:])
	}
	return string(utf16.Decode(units)), nil
}

// readLen8 decodes a UTF-8-pool length field: 1 byte if the high bit is
// clear, else a 2-byte big-endian value with the high bits masked off.
func readLen8(data []byte) (int, int) {
	if len(data) == 0 {
		return 0, 0
	}
	if data[0]&0x80 == 0 {
		return int(data[0]), 1
	}
	if len(data) < 2 {
		return 0, 1
	}
	return int(data[0]&0x7f)<<8 | int(data[1]), 2
}

// readLen16 decodes a UTF-16-pool length field: 1 unit if the high bit of
// the first u16 is clear, else a pair of u16s with the high bits masked.
func readLen16(data []byte) (int, int) {
	if len(data) < 2 {
		return 0, 0
	}
	first := binary.LittleEndian.Uint16(data)
	if first&0x8000 == 0 {
		return int(first), 2
	}
	if len(data) < 4 {
		return 0, 2
	}
	second := binary.LittleEndian.Uint16(data[2:])
	return int(first&0x7fff)<<16 | int(second), 4
}
