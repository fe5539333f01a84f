/*
 * dexlens - Android APK/DEX static-analysis toolkit
 */

package dex

// Header is the decoded 112-byte DEX header.
type Header struct {
	Version         string
	Checksum        uint32
	SHA1            [20]byte
	FileSize        uint32
	HeaderSize      uint32
	EndianTag       uint32
	LinkSize        uint32
	LinkOff         uint32
	MapOff          uint32
	StringIDsSize   uint32
	StringIDsOff    uint32
	TypeIDsSize     uint32
	TypeIDsOff      uint32
	ProtoIDsSize    uint32
	ProtoIDsOff     uint32
	FieldIDsSize    uint32
	FieldIDsOff     uint32
	MethodIDsSize   uint32
	MethodIDsOff    uint32
	ClassDefsSize   uint32
	ClassDefsOff    uint32
	DataSize        uint32
	DataOff         uint32
}

// ClassDef mirrors the on-disk class_def_item.
type ClassDef struct {
	ClassIdx        uint32
	AccessFlags     uint32
	SuperclassIdx   uint32
	InterfacesOff   uint32
	SourceFileIdx   uint32
	AnnotationsOff  uint32
	ClassDataOff    uint32
	StaticValuesOff uint32
}

// FieldInfo mirrors field_id_item.
type FieldInfo struct {
	ClassIdx uint32
	TypeIdx  uint32
	NameIdx  uint32
}

// MethodInfo mirrors method_id_item.
type MethodInfo struct {
	ClassIdx uint32
	ProtoIdx uint32
	NameIdx  uint32
}

// ProtoInfo mirrors proto_id_item, resolved to include the raw parameter
// type-index list.
type ProtoInfo struct {
	ShortyIdx     uint32
	ReturnTypeIdx uint32
	ParametersOff uint32
	ParamTypeIdxs []uint16
}

// EncodedField is one entry of class_data's field lists.
type EncodedField struct {
	FieldIdx    uint32 // absolute index, already delta-resolved
	AccessFlags uint32
}

// EncodedMethod is one entry of class_data's method lists.
type EncodedMethod struct {
	MethodIdx   uint32 // absolute index, already delta-resolved
	AccessFlags uint32
	CodeOff     uint32
}

// ClassData is the decoded class_data_item.
type ClassData struct {
	StaticFields   []EncodedField
	InstanceFields []EncodedField
	DirectMethods  []EncodedMethod
	VirtualMethods []EncodedMethod
}
