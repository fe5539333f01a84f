/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

package dex

import "errors"

// Sentinel errors for the DEX parse-error taxonomy.
// Wrapped with fmt.Errorf("...: %w", ...) at the call site so callers can
// still errors.Is against the specific failure.
var (
	ErrBadMagic          = errors.New("dex: bad magic")
	ErrUnsupportedEndian = errors.New("dex: unsupported endian tag")
	ErrHeaderSize        = errors.New("dex: header_size != 112")
	ErrIndexRange        = errors.New("dex: index out of range")
	ErrULEB128Overflow   = errors.New("dex: uleb128 overflow")
	ErrTruncatedString   = errors.New("dex: truncated string data")
	ErrNotUTF8           = errors.New("dex: string is not valid utf-8")
	ErrTruncatedBuffer   = errors.New("dex: truncated buffer")

	// Analysis errors: looked up by name, not produced by the byte-level
	// parser.
	ErrClassNotFound  = errors.New("dex: class not found")
	ErrMethodNotFound = errors.New("dex: method not found")
	ErrFieldNotFound  = errors.New("dex: field not found")
)
