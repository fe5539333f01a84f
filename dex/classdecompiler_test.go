package dex

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decompileFixture builds a one-class DEX image: MainActivity has one
// instance field (settings: android.webkit.WebSettings) and one virtual
// method, configure(): void, whose body is const/4 v1,#1; invoke-virtual
// {v0,v1}, WebSettings.setJavaScriptEnabled(boolean):void -- enough surface
// to exercise every branch of Decompile/decompileField/decompileMethod.
func decompileFixture(t *testing.T) (*Parser, *ClassDef) {
	t.Helper()

	strs := []string{
		"Landroid/webkit/WebSettings;",   // 0
		"Z",                              // 1
		"V",                              // 2
		"setJavaScriptEnabled",           // 3
		"Lcom/example/app/MainActivity;", // 4
		"configure",                      // 5
		"settings",                       // 6
		"Ljava/io/Serializable;",         // 7
		"Ljava/lang/Comparable;",         // 8
	}
	// type_idx -> string_idx
	typeDescStringIdx := []uint32{0, 1, 2, 4, 7, 8}

	off := uint32(HeaderSize)
	stringIDsOff := off
	stringIDsSize := uint32(len(strs))
	off += stringIDsSize * StringIDSize

	typeIDsOff := off
	typeIDsSize := uint32(len(typeDescStringIdx))
	off += typeIDsSize * TypeIDSize

	protoIDsOff := off
	protoIDsSize := uint32(2)
	off += protoIDsSize * ProtoIDSize

	methodIDsOff := off
	methodIDsSize := uint32(2)
	off += methodIDsSize * MethodIDSize

	fieldIDsOff := off
	fieldIDsSize := uint32(1)
	off += fieldIDsSize * FieldIDSize

	classDefsOff := off
	classDefsSize := uint32(1)
	off += classDefsSize * ClassDefSize

	paramListOff := off
	paramList := []byte{1, 0, 0, 0, 1, 0} // count=1, type_idx=1 (Z)
	off += uint32(len(paramList))

	interfacesOff := off
	interfacesList := []byte{2, 0, 0, 0, 4, 0, 5, 0} // count=2, type_idx 4 and 5
	off += uint32(len(interfacesList))

	codeOff := off
	constWord := uint16((1 << 12) | (1 << 8) | OpConst4)        // const/4 v1, #1
	invokeWord := uint16((2 << 12) | (0 << 8) | OpInvokeVirtual) // invoke-virtual {v0,v1}, method@0
	insns := []uint16{constWord, invokeWord, 0, 1}
	codeItem := make([]byte, 16+2*len(insns))
	binary.LittleEndian.PutUint16(codeItem[0:2], 2)  // registers_size
	binary.LittleEndian.PutUint16(codeItem[2:4], 1)  // ins_size
	binary.LittleEndian.PutUint16(codeItem[4:6], 2)  // outs_size
	binary.LittleEndian.PutUint16(codeItem[6:8], 0)  // tries_size
	binary.LittleEndian.PutUint32(codeItem[8:12], 0) // debug_info_off
	binary.LittleEndian.PutUint32(codeItem[12:16], uint32(len(insns)))
	for i, w := range insns {
		binary.LittleEndian.PutUint16(codeItem[16+i*2:], w)
	}
	off += uint32(len(codeItem))

	classDataOff := off
	var classData []byte
	classData = append(classData, encodeULEB128(0)...) // static_fields_size
	classData = append(classData, encodeULEB128(1)...) // instance_fields_size
	classData = append(classData, encodeULEB128(0)...) // direct_methods_size
	classData = append(classData, encodeULEB128(1)...) // virtual_methods_size
	classData = append(classData, encodeULEB128(0)...) // field delta -> field_idx 0
	classData = append(classData, encodeULEB128(0)...) // field access_flags
	classData = append(classData, encodeULEB128(1)...) // method delta -> method_idx 1
	classData = append(classData, encodeULEB128(uint32(AccPublic))...)
	classData = append(classData, encodeULEB128(codeOff)...)
	off += uint32(len(classData))

	dataStart := off
	var dataSection []byte
	dataOffsets := make([]uint32, len(strs))
	for i, s := range strs {
		dataOffsets[i] = dataStart + uint32(len(dataSection))
		dataSection = append(dataSection, encodeULEB128(uint32(len(s)))...)
		dataSection = append(dataSection, []byte(s)...)
		dataSection = append(dataSection, 0x00)
	}

	total := int(dataStart) + len(dataSection)
	buf := make([]byte, total)
	copy(buf[0:4], dexMagic[:])
	copy(buf[4:8], "035\x00")
	binary.LittleEndian.PutUint32(buf[36:40], HeaderSize)
	binary.LittleEndian.PutUint32(buf[40:44], EndianConstant)
	binary.LittleEndian.PutUint32(buf[56:60], stringIDsSize)
	binary.LittleEndian.PutUint32(buf[60:64], stringIDsOff)
	binary.LittleEndian.PutUint32(buf[64:68], typeIDsSize)
	binary.LittleEndian.PutUint32(buf[68:72], typeIDsOff)
	binary.LittleEndian.PutUint32(buf[72:76], protoIDsSize)
	binary.LittleEndian.PutUint32(buf[76:80], protoIDsOff)
	binary.LittleEndian.PutUint32(buf[80:84], fieldIDsSize)
	binary.LittleEndian.PutUint32(buf[84:88], fieldIDsOff)
	binary.LittleEndian.PutUint32(buf[88:92], methodIDsSize)
	binary.LittleEndian.PutUint32(buf[92:96], methodIDsOff)
	binary.LittleEndian.PutUint32(buf[96:100], classDefsSize)
	binary.LittleEndian.PutUint32(buf[100:104], classDefsOff)

	for i, off := range dataOffsets {
		binary.LittleEndian.PutUint32(buf[stringIDsOff+uint32(i)*4:], off)
	}
	for i, sIdx := range typeDescStringIdx {
		binary.LittleEndian.PutUint32(buf[typeIDsOff+uint32(i)*4:], sIdx)
	}

	// proto0: setJavaScriptEnabled(boolean): void
	binary.LittleEndian.PutUint32(buf[protoIDsOff:], 1)
	binary.LittleEndian.PutUint32(buf[protoIDsOff+4:], 2)
	binary.LittleEndian.PutUint32(buf[protoIDsOff+8:], paramListOff)
	// proto1: configure(): void, no parameters
	proto1Off := protoIDsOff + ProtoIDSize
	binary.LittleEndian.PutUint32(buf[proto1Off:], 2)
	binary.LittleEndian.PutUint32(buf[proto1Off+4:], 2)
	binary.LittleEndian.PutUint32(buf[proto1Off+8:], 0)

	// method0: WebSettings.setJavaScriptEnabled
	binary.LittleEndian.PutUint16(buf[methodIDsOff:], 0)
	binary.LittleEndian.PutUint16(buf[methodIDsOff+2:], 0)
	binary.LittleEndian.PutUint32(buf[methodIDsOff+4:], 3)
	// method1: MainActivity.configure
	method1Off := methodIDsOff + MethodIDSize
	binary.LittleEndian.PutUint16(buf[method1Off:], 3)
	binary.LittleEndian.PutUint16(buf[method1Off+2:], 1)
	binary.LittleEndian.PutUint32(buf[method1Off+4:], 5)

	// field0: MainActivity.settings: WebSettings
	binary.LittleEndian.PutUint16(buf[fieldIDsOff:], 3)
	binary.LittleEndian.PutUint16(buf[fieldIDsOff+2:], 0)
	binary.LittleEndian.PutUint32(buf[fieldIDsOff+4:], 6)

	// class_def0
	binary.LittleEndian.PutUint32(buf[classDefsOff:], 3)             // class_idx
	binary.LittleEndian.PutUint32(buf[classDefsOff+4:], AccPublic)   // access_flags
	binary.LittleEndian.PutUint32(buf[classDefsOff+8:], NoIndex)      // superclass_idx
	binary.LittleEndian.PutUint32(buf[classDefsOff+12:], interfacesOff)
	binary.LittleEndian.PutUint32(buf[classDefsOff+16:], NoIndex)    // source_file_idx
	binary.LittleEndian.PutUint32(buf[classDefsOff+20:], 0)          // annotations_off
	binary.LittleEndian.PutUint32(buf[classDefsOff+24:], classDataOff)
	binary.LittleEndian.PutUint32(buf[classDefsOff+28:], 0)          // static_values_off

	copy(buf[paramListOff:], paramList)
	copy(buf[interfacesOff:], interfacesList)
	copy(buf[codeOff:], codeItem)
	copy(buf[classDataOff:], classData)
	copy(buf[dataStart:], dataSection)

	p, err := Open(buf)
	require.NoError(t, err)

	classDef, err := p.ClassDef(0)
	require.NoError(t, err)
	return p, classDef
}

func TestDecompileBuildsClassWithFieldAndWebviewMethod(t *testing.T) {
	p, classDef := decompileFixture(t)

	class, err := Decompile(p, classDef)
	require.NoError(t, err)

	assert.Equal(t, "com.example.app.MainActivity", class.ClassName)
	assert.Equal(t, "com.example.app", class.Package)
	assert.Equal(t, "MainActivity", class.SimpleName)
	assert.Empty(t, class.Superclass)
	assert.Equal(t, []string{"java.io.Serializable", "java.lang.Comparable"}, class.Interfaces)
	assert.True(t, class.IsPublic())
	assert.False(t, class.IsFinal())

	require.Len(t, class.Fields, 1)
	assert.Equal(t, "settings: android.webkit.WebSettings", class.Fields[0])

	require.Len(t, class.Methods, 1)
	m := class.Methods[0]
	assert.Equal(t, "configure", m.Name)
	assert.Equal(t, "(): void", m.Signature)
	assert.True(t, m.IsPublic)
	assert.False(t, m.IsStatic)
	assert.Equal(t, 4, m.BytecodeSize)

	require.Len(t, m.Expressions, 1)
	assert.Contains(t, m.Expressions[0].Text, ".setJavaScriptEnabled(true)")

	require.Len(t, class.WebviewMethods(), 1)
	assert.Equal(t, "configure", class.WebviewMethods()[0].Name)
}

func TestDecompileZeroClassDataOffYieldsFieldlessMethodlessClass(t *testing.T) {
	p, classDef := decompileFixture(t)
	classDef.ClassDataOff = 0

	class, err := Decompile(p, classDef)
	require.NoError(t, err)
	assert.Empty(t, class.Fields)
	assert.Empty(t, class.Methods)
	assert.Equal(t, "com.example.app.MainActivity", class.ClassName)
}

func TestHasSecurityCallsMatchesCaseSensitiveSubstrings(t *testing.T) {
	m := DecompiledMethod{Expressions: []Expression{{Text: "webView.addJavascriptInterface(bridge, \"JSBridge\")"}}}
	assert.False(t, m.HasSecurityCalls()) // "addJavascriptInterface" doesn't itself contain any of the matched substrings
	m2 := DecompiledMethod{Expressions: []Expression{{Text: "settings.setAllowFileAccess(true)"}}}
	assert.True(t, m2.HasSecurityCalls())
}

func TestSplitClassNameHandlesDescriptorAndDottedForms(t *testing.T) {
	cases := []struct {
		in         string
		wantPkg    string
		wantSimple string
	}{
		{"Lcom/example/app/MainActivity;", "com.example.app", "MainActivity"},
		{"com.example.app.MainActivity", "com.example.app", "MainActivity"},
		{"MainActivity", "", "MainActivity"},
		{"LoginActivity", "", "LoginActivity"},
		{"com.example.app.LoginActivity", "com.example.app", "LoginActivity"},
	}
	for _, c := range cases {
		pkg, simple := splitClassName(c.in)
		assert.Equal(t, c.wantPkg, pkg, c.in)
		assert.Equal(t, c.wantSimple, simple, c.in)
	}
}
