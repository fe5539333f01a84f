/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

// Package dex implements the DEX binary format: header, string/type/proto/
// field/method pools, class-data tables, code items, and the Dalvik
// instruction decoder and expression reconstruction built on top of them.
//
// Parser holds an owned, immutable byte buffer plus the decoded header. All
// lookups are offset arithmetic against that buffer; nothing here performs
// I/O. The byte slice is never mutated after Open returns, so a *Parser may
// be shared freely across goroutines without locking.
package dex

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/mixL1nk/dexlens/internal/dexlog"
)

// Parser is a read-only view over one DEX image.
type Parser struct {
	buf    []byte
	Header Header
}

// Open validates and indexes one DEX image. It never mutates data and never
// copies it; the returned Parser keeps a reference, so callers must not
// mutate data afterward.
func Open(data []byte) (*Parser, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("dex.Open: %w (got %d bytes)", ErrTruncatedBuffer, len(data))
	}
	if string(data[0:4]) != string(dexMagic[:]) {
		return nil, fmt.Errorf("dex.Open: %w", ErrBadMagic)
	}
	version := string(data[4:8])
	if !isSupportedVersion(version) {
		dexlog.Warn(fmt.Sprintf("dex.Open: unsupported DEX version %q, continuing best-effort", version))
	}

	h := Header{Version: version}
	h.Checksum = le32(data, 8)
	copy(h.SHA1[:], data[12:32])
	h.FileSize = le32(data, 32)
	h.HeaderSize = le32(data, 36)
	if h.HeaderSize != HeaderSize {
		return nil, fmt.Errorf("dex.Open: %w (got %d)", ErrHeaderSize, h.HeaderSize)
	}
	h.EndianTag = le32(data, 40)
	if h.EndianTag != EndianConstant {
		return nil, fmt.Errorf("dex.Open: %w (got 0x%x)", ErrUnsupportedEndian, h.EndianTag)
	}
	h.LinkSize = le32(data, 44)
	h.LinkOff = le32(data, 48)
	h.MapOff = le32(data, 52)
	h.StringIDsSize = le32(data, 56)
	h.StringIDsOff = le32(data, 60)
	h.TypeIDsSize = le32(data, 64)
	h.TypeIDsOff = le32(data, 68)
	h.ProtoIDsSize = le32(data, 72)
	h.ProtoIDsOff = le32(data, 76)
	h.FieldIDsSize = le32(data, 80)
	h.FieldIDsOff = le32(data, 84)
	h.MethodIDsSize = le32(data, 88)
	h.MethodIDsOff = le32(data, 92)
	h.ClassDefsSize = le32(data, 96)
	h.ClassDefsOff = le32(data, 100)
	h.DataSize = le32(data, 104)
	h.DataOff = le32(data, 108)

	return &Parser{buf: data, Header: h}, nil
}

func le32(buf []byte, off uint32) uint32 {
	return binary.LittleEndian.Uint32(buf[off : off+4])
}

func le16(buf []byte, off uint32) uint16 {
	return binary.LittleEndian.Uint16(buf[off : off+2])
}

// ClassCount returns the number of class_def_items.
func (p *Parser) ClassCount() int { return int(p.Header.ClassDefsSize) }

// String resolves string_ids[i] to its decoded (MUTF-8 -> UTF-8) text.
func (p *Parser) String(i int) (string, error) {
	if i < 0 || uint32(i) >= p.Header.StringIDsSize {
		return "", fmt.Errorf("dex.String(%d): %w", i, ErrIndexRange)
	}
	idOff := p.Header.StringIDsOff + uint32(i)*StringIDSize
	if int(idOff)+4 > len(p.buf) {
		return "", fmt.Errorf("dex.String(%d): %w", i, ErrTruncatedBuffer)
	}
	dataOff := le32(p.buf, idOff)
	if int(dataOff) >= len(p.buf) {
		return "", fmt.Errorf("dex.String(%d): %w", i, ErrTruncatedBuffer)
	}

	// ULEB128 length is informational (UTF-16 code unit count); discarded.
	_, pos, err := readULEB128(p.buf, int(dataOff))
	if err != nil {
		return "", fmt.Errorf("dex.String(%d): %w", i, err)
	}

	start := pos
	end := pos
	for end < len(p.buf) && p.buf[end] != 0x00 {
		end++
	}
	if end >= len(p.buf) {
		return "", fmt.Errorf("dex.String(%d): %w", i, ErrTruncatedString)
	}

	s, err := decodeMUTF8(p.buf[start:end])
	if err != nil {
		return "", fmt.Errorf("dex.String(%d): %w", i, err)
	}
	return s, nil
}

// decodeMUTF8 decodes DEX's modified-UTF-8 byte sequence into a Go string.
// It is permissive of MUTF-8's two deviations from strict UTF-8 (the 2-byte
// overlong NUL 0xC0 0x80, and 6-byte CESU-8-style surrogate pairs standing
// in for supplementary code points) and strict about everything else: any
// byte sequence that is not one of those two forms and not already valid
// UTF-8 is rejected, with two exceptions: an unpaired 3-byte surrogate is
// kept (Go's string conversion turns it into U+FFFD), and overlong 2- and
// 3-byte forms other than 0xC0 0x80 are decoded rather than rejected.
func decodeMUTF8(b []byte) (string, error) {
	if utf8.Valid(b) {
		return string(b), nil
	}
	var out []rune
	i := 0
	for i < len(b) {
		c := b[i]
		switch {
		case c == 0xC0 && i+1 < len(b) && b[i+1] == 0x80:
			out = append(out, 0)
			i += 2
		case c&0x80 == 0:
			out = append(out, rune(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b) && b[i+1]&0xC0 == 0x80:
			r := rune(c&0x1F)<<6 | rune(b[i+1]&0x3F)
			out = append(out, r)
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b) && b[i+1]&0xC0 == 0x80 && b[i+2]&0xC0 == 0x80:
			// possible first half of a CESU-8 surrogate pair
			r1 := rune(c&0x0F)<<12 | rune(b[i+1]&0x3F)<<6 | rune(b[i+2]&0x3F)
			if r1 >= 0xD800 && r1 <= 0xDBFF && i+5 < len(b) && b[i+3] == 0xED &&
				b[i+4]&0xC0 == 0x80 && b[i+5]&0xC0 == 0x80 {
				r2 := rune(b[i+3]&0x0F)<<12 | rune(b[i+4]&0x3F)<<6 | rune(b[i+5]&0x3F)
				if r2 >= 0xDC00 && r2 <= 0xDFFF {
					combined := 0x10000 + (r1-0xD800)<<10 + (r2 - 0xDC00)
					out = append(out, combined)
					i += 6
					continue
				}
			}
			out = append(out, r1)
			i += 3
		default:
			return "", ErrNotUTF8
		}
	}
	return string(out), nil
}

// TypeName dereferences type_ids[i] to its descriptor string, then converts
// the descriptor to a Java-style display name.
func (p *Parser) TypeName(i int) (string, error) {
	if i < 0 || uint32(i) >= p.Header.TypeIDsSize {
		return "", fmt.Errorf("dex.TypeName(%d): %w", i, ErrIndexRange)
	}
	off := p.Header.TypeIDsOff + uint32(i)*TypeIDSize
	if int(off)+4 > len(p.buf) {
		return "", fmt.Errorf("dex.TypeName(%d): %w", i, ErrTruncatedBuffer)
	}
	descIdx := le32(p.buf, off)
	desc, err := p.String(int(descIdx))
	if err != nil {
		return "", fmt.Errorf("dex.TypeName(%d): %w", i, err)
	}
	return DescriptorToJavaName(desc), nil
}

// DescriptorToJavaName converts one DEX type descriptor ("V", "I",
// "Ljava/lang/String;", "[I", "[[Ljava/lang/String;") to its Java display
// name ("void", "int", "java.lang.String", "int[]", "java.lang.String[][]").
// An unrecognized base descriptor renders as "unknown" and is reported
// through dexlog.Warn.
func DescriptorToJavaName(desc string) string {
	depth := 0
	for depth < len(desc) && desc[depth] == DescArray {
		depth++
	}
	base := desc[depth:]

	var name string
	known := true
	if len(base) == 1 {
		name, known = primitiveJavaName(base[0])
	} else if len(base) >= 2 && base[0] == DescObject {
		inner := base[1:]
		inner = trimSemicolon(inner)
		name = replaceSlashes(inner)
	} else {
		name, known = "unknown", false
	}
	if !known {
		dexlog.Warn(fmt.Sprintf("dex: unknown type descriptor %q", desc))
	}

	for k := 0; k < depth; k++ {
		name += "[]"
	}
	return name
}

func trimSemicolon(s string) string {
	if len(s) > 0 && s[len(s)-1] == ';' {
		return s[:len(s)-1]
	}
	return s
}

func replaceSlashes(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c == '/' {
			b[i] = '.'
		}
	}
	return string(b)
}

// ClassDef reads class_defs[i].
func (p *Parser) ClassDef(i int) (*ClassDef, error) {
	if i < 0 || uint32(i) >= p.Header.ClassDefsSize {
		return nil, fmt.Errorf("dex.ClassDef(%d): %w", i, ErrIndexRange)
	}
	off := p.Header.ClassDefsOff + uint32(i)*ClassDefSize
	if int(off)+ClassDefSize > len(p.buf) {
		return nil, fmt.Errorf("dex.ClassDef(%d): %w", i, ErrTruncatedBuffer)
	}
	return &ClassDef{
		ClassIdx:        le32(p.buf, off),
		AccessFlags:     le32(p.buf, off+4),
		SuperclassIdx:   le32(p.buf, off+8),
		InterfacesOff:   le32(p.buf, off+12),
		SourceFileIdx:   le32(p.buf, off+16),
		AnnotationsOff:  le32(p.buf, off+20),
		ClassDataOff:    le32(p.buf, off+24),
		StaticValuesOff: le32(p.buf, off+28),
	}, nil
}

// FieldInfo reads field_ids[i].
func (p *Parser) FieldInfo(i int) (*FieldInfo, error) {
	if i < 0 || uint32(i) >= p.Header.FieldIDsSize {
		return nil, fmt.Errorf("dex.FieldInfo(%d): %w", i, ErrIndexRange)
	}
	off := p.Header.FieldIDsOff + uint32(i)*FieldIDSize
	if int(off)+FieldIDSize > len(p.buf) {
		return nil, fmt.Errorf("dex.FieldInfo(%d): %w", i, ErrTruncatedBuffer)
	}
	return &FieldInfo{
		ClassIdx: uint32(le16(p.buf, off)),
		TypeIdx:  uint32(le16(p.buf, off+2)),
		NameIdx:  le32(p.buf, off+4),
	}, nil
}

// MethodInfo reads method_ids[i].
func (p *Parser) MethodInfo(i int) (*MethodInfo, error) {
	if i < 0 || uint32(i) >= p.Header.MethodIDsSize {
		return nil, fmt.Errorf("dex.MethodInfo(%d): %w", i, ErrIndexRange)
	}
	off := p.Header.MethodIDsOff + uint32(i)*MethodIDSize
	if int(off)+MethodIDSize > len(p.buf) {
		return nil, fmt.Errorf("dex.MethodInfo(%d): %w", i, ErrTruncatedBuffer)
	}
	return &MethodInfo{
		ClassIdx: uint32(le16(p.buf, off)),
		ProtoIdx: uint32(le16(p.buf, off+2)),
		NameIdx:  le32(p.buf, off+4),
	}, nil
}

// ProtoInfo reads proto_ids[i], additionally following parameters_off to
// collect the parameter type-index list when present.
func (p *Parser) ProtoInfo(i int) (*ProtoInfo, error) {
	if i < 0 || uint32(i) >= p.Header.ProtoIDsSize {
		return nil, fmt.Errorf("dex.ProtoInfo(%d): %w", i, ErrIndexRange)
	}
	off := p.Header.ProtoIDsOff + uint32(i)*ProtoIDSize
	if int(off)+ProtoIDSize > len(p.buf) {
		return nil, fmt.Errorf("dex.ProtoInfo(%d): %w", i, ErrTruncatedBuffer)
	}
	pi := &ProtoInfo{
		ShortyIdx:     le32(p.buf, off),
		ReturnTypeIdx: le32(p.buf, off+4),
		ParametersOff: le32(p.buf, off+8),
	}
	if pi.ParametersOff == 0 {
		return pi, nil
	}
	if int(pi.ParametersOff)+4 > len(p.buf) {
		return nil, fmt.Errorf("dex.ProtoInfo(%d): %w", i, ErrTruncatedBuffer)
	}
	count := le32(p.buf, pi.ParametersOff)
	cursor := pi.ParametersOff + 4
	pi.ParamTypeIdxs = make([]uint16, 0, count)
	for j := uint32(0); j < count; j++ {
		if int(cursor)+2 > len(p.buf) {
			return nil, fmt.Errorf("dex.ProtoInfo(%d): %w", i, ErrTruncatedBuffer)
		}
		pi.ParamTypeIdxs = append(pi.ParamTypeIdxs, le16(p.buf, cursor))
		cursor += 2
	}
	return pi, nil
}

// InterfaceTypeIdxs reads the type_list at off (class_def.interfaces_off
// convention: a u32 count followed by that many u16 type indices).
func (p *Parser) InterfaceTypeIdxs(off uint32) ([]uint16, error) {
	if off == 0 {
		return nil, nil
	}
	if int(off)+4 > len(p.buf) {
		return nil, fmt.Errorf("dex.InterfaceTypeIdxs: %w", ErrTruncatedBuffer)
	}
	count := le32(p.buf, off)
	cursor := off + 4
	out := make([]uint16, 0, count)
	for j := uint32(0); j < count; j++ {
		if int(cursor)+2 > len(p.buf) {
			return nil, fmt.Errorf("dex.InterfaceTypeIdxs: %w", ErrTruncatedBuffer)
		}
		out = append(out, le16(p.buf, cursor))
		cursor += 2
	}
	return out, nil
}

// ClassData reads class_data_item at off. off == 0 means the class has no
// declared members and yields an empty, error-free ClassData.
func (p *Parser) ClassData(off uint32) (*ClassData, error) {
	if off == 0 {
		return &ClassData{}, nil
	}
	pos := int(off)

	staticFieldsSize, pos, err := readULEB128(p.buf, pos)
	if err != nil {
		return nil, fmt.Errorf("dex.ClassData: %w", err)
	}
	instanceFieldsSize, pos, err := readULEB128(p.buf, pos)
	if err != nil {
		return nil, fmt.Errorf("dex.ClassData: %w", err)
	}
	directMethodsSize, pos, err := readULEB128(p.buf, pos)
	if err != nil {
		return nil, fmt.Errorf("dex.ClassData: %w", err)
	}
	virtualMethodsSize, pos, err := readULEB128(p.buf, pos)
	if err != nil {
		return nil, fmt.Errorf("dex.ClassData: %w", err)
	}

	cd := &ClassData{}

	var fieldIdx uint32
	for j := uint32(0); j < staticFieldsSize; j++ {
		var delta, flags uint32
		delta, pos, err = readULEB128(p.buf, pos)
		if err != nil {
			return nil, fmt.Errorf("dex.ClassData: static field %d: %w", j, err)
		}
		flags, pos, err = readULEB128(p.buf, pos)
		if err != nil {
			return nil, fmt.Errorf("dex.ClassData: static field %d: %w", j, err)
		}
		fieldIdx += delta
		cd.StaticFields = append(cd.StaticFields, EncodedField{FieldIdx: fieldIdx, AccessFlags: flags})
	}

	fieldIdx = 0
	for j := uint32(0); j < instanceFieldsSize; j++ {
		var delta, flags uint32
		delta, pos, err = readULEB128(p.buf, pos)
		if err != nil {
			return nil, fmt.Errorf("dex.ClassData: instance field %d: %w", j, err)
		}
		flags, pos, err = readULEB128(p.buf, pos)
		if err != nil {
			return nil, fmt.Errorf("dex.ClassData: instance field %d: %w", j, err)
		}
		fieldIdx += delta
		cd.InstanceFields = append(cd.InstanceFields, EncodedField{FieldIdx: fieldIdx, AccessFlags: flags})
	}

	var methodIdx uint32
	for j := uint32(0); j < directMethodsSize; j++ {
		var delta, flags, codeOff uint32
		delta, pos, err = readULEB128(p.buf, pos)
		if err != nil {
			return nil, fmt.Errorf("dex.ClassData: direct method %d: %w", j, err)
		}
		flags, pos, err = readULEB128(p.buf, pos)
		if err != nil {
			return nil, fmt.Errorf("dex.ClassData: direct method %d: %w", j, err)
		}
		codeOff, pos, err = readULEB128(p.buf, pos)
		if err != nil {
			return nil, fmt.Errorf("dex.ClassData: direct method %d: %w", j, err)
		}
		methodIdx += delta
		cd.DirectMethods = append(cd.DirectMethods, EncodedMethod{MethodIdx: methodIdx, AccessFlags: flags, CodeOff: codeOff})
	}

	methodIdx = 0
	for j := uint32(0); j < virtualMethodsSize; j++ {
		var delta, flags, codeOff uint32
		delta, pos, err = readULEB128(p.buf, pos)
		if err != nil {
			return nil, fmt.Errorf("dex.ClassData: virtual method %d: %w", j, err)
		}
		flags, pos, err = readULEB128(p.buf, pos)
		if err != nil {
			return nil, fmt.Errorf("dex.ClassData: virtual method %d: %w", j, err)
		}
		codeOff, pos, err = readULEB128(p.buf, pos)
		if err != nil {
			return nil, fmt.Errorf("dex.ClassData: virtual method %d: %w", j, err)
		}
		methodIdx += delta
		cd.VirtualMethods = append(cd.VirtualMethods, EncodedMethod{MethodIdx: methodIdx, AccessFlags: flags, CodeOff: codeOff})
	}

	return cd, nil
}

// MethodBytecode reads the insns array of the code_item at codeOff. A zero
// offset is a method without bytecode (abstract/native) and yields an empty,
// error-free stream.
func (p *Parser) MethodBytecode(codeOff uint32) ([]uint16, error) {
	if codeOff == 0 {
		return nil, nil
	}
	// code_item header: registers_size, ins_size, outs_size, tries_size
	// (u16 each), debug_info_off (u32), insns_size (u32).
	if int(codeOff)+16 > len(p.buf) {
		return nil, fmt.Errorf("dex.MethodBytecode: %w", ErrTruncatedBuffer)
	}
	insnsSize := le32(p.buf, codeOff+12)
	cursor := codeOff + 16
	out := make([]uint16, 0, insnsSize)
	for j := uint32(0); j < insnsSize; j++ {
		if int(cursor)+2 > len(p.buf) {
			return nil, fmt.Errorf("dex.MethodBytecode: %w", ErrTruncatedBuffer)
		}
		out = append(out, le16(p.buf, cursor))
		cursor += 2
	}
	return out, nil
}

// readULEB128 decodes one unsigned LEB128 value starting at pos, returning
// the value and the position just past it. Overflow past 35 bits of shift is
// a parse error, matching the DEX spec's 5-byte maximum encoding.
func readULEB128(buf []byte, pos int) (uint32, int, error) {
	var result uint32
	var shift uint
	for {
		if pos >= len(buf) {
			return 0, pos, ErrTruncatedBuffer
		}
		b := buf[pos]
		pos++
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, pos, nil
		}
		shift += 7
		if shift >= 35 {
			return 0, pos, ErrULEB128Overflow
		}
	}
}
