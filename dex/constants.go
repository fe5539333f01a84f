/*
 * dexlens - Android APK/DEX static-analysis toolkit
 * Constants drawn from the DEX file format. Reference:
 * https://source.android.com/docs/core/runtime/dex-format
 */

package dex

// Access flag bits shared by classes, fields, and methods, plus the subset
// reserved for one kind only. Values match the DEX spec exactly.
const (
	AccPublic    uint32 = 0x0001
	AccPrivate   uint32 = 0x0002
	AccProtected uint32 = 0x0004
	AccStatic    uint32 = 0x0008
	AccFinal     uint32 = 0x0010

	// classes only
	AccInterface  uint32 = 0x0200
	AccAbstract   uint32 = 0x0400
	AccSynthetic  uint32 = 0x1000
	AccAnnotation uint32 = 0x2000
	AccEnum       uint32 = 0x4000

	// methods only
	AccSynchronized uint32 = 0x0020
	AccBridge       uint32 = 0x0040
	AccVarargs      uint32 = 0x0080
	AccNative       uint32 = 0x0100
	AccStrict       uint32 = 0x0800

	// fields only (bit-alias with the method-only flags above; disambiguated
	// by caller context exactly as the DEX format itself does)
	AccVolatile  uint32 = 0x0040
	AccTransient uint32 = 0x0080

	AccConstructor          uint32 = 0x10000
	AccDeclaredSynchronized uint32 = 0x20000
)

// FlagsToStrings renders access flags to their human-readable Java modifier
// names, in the conventional declaration order.
func FlagsToStrings(flags uint32) []string {
	var out []string
	add := func(bit uint32, name string) {
		if flags&bit != 0 {
			out = append(out, name)
		}
	}
	add(AccPublic, "public")
	add(AccPrivate, "private")
	add(AccProtected, "protected")
	add(AccStatic, "static")
	add(AccFinal, "final")
	add(AccSynchronized, "synchronized")
	add(AccVolatile, "volatile")
	add(AccTransient, "transient")
	add(AccBridge, "bridge")
	add(AccVarargs, "varargs")
	add(AccNative, "native")
	add(AccInterface, "interface")
	add(AccAbstract, "abstract")
	add(AccStrict, "strictfp")
	add(AccSynthetic, "synthetic")
	add(AccAnnotation, "annotation")
	add(AccEnum, "enum")
	return out
}

// Type descriptor single-character primitives.
const (
	DescVoid    = 'V'
	DescBoolean = 'Z'
	DescByte    = 'B'
	DescShort   = 'S'
	DescChar    = 'C'
	DescInt     = 'I'
	DescLong    = 'J'
	DescFloat   = 'F'
	DescDouble  = 'D'
	DescObject  = 'L'
	DescArray   = '['
)

func primitiveJavaName(d byte) (string, bool) {
	switch d {
	case DescVoid:
		return "void", true
	case DescBoolean:
		return "boolean", true
	case DescByte:
		return "byte", true
	case DescShort:
		return "short", true
	case DescChar:
		return "char", true
	case DescInt:
		return "int", true
	case DescLong:
		return "long", true
	case DescFloat:
		return "float", true
	case DescDouble:
		return "double", true
	default:
		return "unknown", false
	}
}

// Magic and supported version trailers.
var (
	dexMagic = [4]byte{'d', 'e', 'x', '\n'}

	supportedVersions = map[string]bool{
		"035\x00": true,
		"037\x00": true,
		"038\x00": true,
		"039\x00": true,
		"040\x00": true,
	}
)

func isSupportedVersion(v string) bool {
	return supportedVersions[v]
}

// Structural constants.
const (
	HeaderSize            = 0x70 // 112 bytes
	EndianConstant        = 0x12345678
	ReverseEndianConstant = 0x78563412
	NoIndex               = 0xFFFFFFFF

	StringIDSize = 4
	TypeIDSize   = 4
	ProtoIDSize  = 12
	FieldIDSize  = 8
	MethodIDSize = 8
	ClassDefSize = 32
)
