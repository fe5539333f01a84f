package dexlens

import (
	"archive/zip"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The fixtures below hand-assemble the smallest valid AXML manifest and DEX
// image this package's pipeline can run end to end over, exercising every
// stage (apk.Open, manifest.Parse, dex.Open/ExtractClasses,
// callgraph.Build, flow.Analyzer) without needing a real APK on disk.

func buildAXMLStringPoolChunk(strs []string) []byte {
	offsetsStart := 20
	offsetsSize := len(strs) * 4

	var stringsBody []byte
	offsets := make([]uint32, len(strs))
	for i, s := range strs {
		offsets[i] = uint32(len(stringsBody))
		stringsBody = append(stringsBody, byte(len(s)), byte(len(s)))
		stringsBody = append(stringsBody, []byte(s)...)
		stringsBody = append(stringsBody, 0x00)
	}

	stringsStart := uint32(8 + offsetsStart + offsetsSize)
	bodyLen := offsetsStart + offsetsSize + len(stringsBody)
	chunkSize := uint32(8 + bodyLen)

	buf := make([]byte, chunkSize)
	binary.LittleEndian.PutUint16(buf[0:2], 0x0001)
	binary.LittleEndian.PutUint16(buf[2:4], 28)
	binary.LittleEndian.PutUint32(buf[4:8], chunkSize)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(strs)))
	binary.LittleEndian.PutUint32(buf[16:20], 1<<8) // UTF-8 flag
	binary.LittleEndian.PutUint32(buf[20:24], stringsStart)

	for i, off := range offsets {
		binary.LittleEndian.PutUint32(buf[8+offsetsStart+i*4:], off)
	}
	copy(buf[8+offsetsStart+offsetsSize:], stringsBody)
	return buf
}

type axmlAttr struct {
	nameIdx, valueIdx int32
}

func buildTagStartChunk(nameIdx int32, attrs []axmlAttr) []byte {
	const nodeHeaderLen = 16
	const attrExtLen = 20
	const attrRecLen = 20

	size := nodeHeaderLen + attrExtLen + attrRecLen*len(attrs)
	buf := make([]byte, size)
	binary.LittleEndian.PutUint16(buf[0:2], 0x0102)
	binary.LittleEndian.PutUint16(buf[2:4], nodeHeaderLen)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(size))

	attrExt := buf[nodeHeaderLen:]
	binary.LittleEndian.PutUint32(attrExt[4:8], uint32(nameIdx))
	binary.LittleEndian.PutUint16(attrExt[8:10], attrExtLen)
	binary.LittleEndian.PutUint16(attrExt[10:12], attrRecLen)
	binary.LittleEndian.PutUint16(attrExt[12:14], uint16(len(attrs)))

	for i, a := range attrs {
		rec := attrExt[attrExtLen+i*attrRecLen : attrExtLen+(i+1)*attrRecLen]
		binary.LittleEndian.PutUint32(rec[4:8], uint32(a.nameIdx))
		binary.LittleEndian.PutUint32(rec[8:12], uint32(a.valueIdx))
		rec[15] = 0x03 // typeString
	}
	return buf
}

func buildTagEndChunk() []byte {
	const nodeHeaderLen = 16
	buf := make([]byte, nodeHeaderLen)
	binary.LittleEndian.PutUint16(buf[0:2], 0x0103)
	binary.LittleEndian.PutUint16(buf[2:4], nodeHeaderLen)
	binary.LittleEndian.PutUint32(buf[4:8], nodeHeaderLen)
	return buf
}

// buildMinimalManifest assembles a single <manifest package="com.example.app">
// (no children) as a compiled AXML document.
func buildMinimalManifest(pkg string) []byte {
	pool := buildAXMLStringPoolChunk([]string{"manifest", "package", pkg})
	tagStart := buildTagStartChunk(0, []axmlAttr{{nameIdx: 1, valueIdx: 2}})
	tagEnd := buildTagEndChunk()

	size := 8 + len(pool) + len(tagStart) + len(tagEnd)
	buf := make([]byte, 8, size)
	binary.LittleEndian.PutUint16(buf[0:2], 0x0003)
	binary.LittleEndian.PutUint16(buf[2:4], 8)
	buf = append(buf, pool...)
	buf = append(buf, tagStart...)
	buf = append(buf, tagEnd...)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(size))
	return buf
}

// buildEmptyDex assembles a syntactically valid, zero-class DEX image.
func buildEmptyDex() []byte {
	buf := make([]byte, 112)
	copy(buf[0:4], []byte("dex\n"))
	copy(buf[4:8], "035\x00")
	binary.LittleEndian.PutUint32(buf[36:40], 112) // header_size
	binary.LittleEndian.PutUint32(buf[40:44], 0x12345678)
	return buf
}

func writeFixtureAPK(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.apk")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	mw, err := w.Create("AndroidManifest.xml")
	require.NoError(t, err)
	_, err = mw.Write(buildMinimalManifest("com.example.app"))
	require.NoError(t, err)

	dw, err := w.Create("classes.dex")
	require.NoError(t, err)
	_, err = dw.Write(buildEmptyDex())
	require.NoError(t, err)

	require.NoError(t, w.Close())
	return path
}

func TestExtractAPKInfo(t *testing.T) {
	path := writeFixtureAPK(t)
	info, err := ExtractAPKInfo(path)
	require.NoError(t, err)
	assert.Equal(t, "com.example.app", info.Manifest.PackageName)
	assert.Equal(t, 1, info.DexCount)
	assert.False(t, info.HasResources)
}

func TestParseManifestFromAPK(t *testing.T) {
	path := writeFixtureAPK(t)
	info, err := ParseManifestFromAPK(path)
	require.NoError(t, err)
	assert.Equal(t, "com.example.app", info.PackageName)
}

func TestExtractClassesFromAPK_EmptyDex(t *testing.T) {
	path := writeFixtureAPK(t)
	classes, stats, err := ExtractClassesFromAPK(context.Background(), path, false)
	require.NoError(t, err)
	assert.Empty(t, classes)
	assert.Equal(t, 0, stats.TotalClasses)
}

func TestBuildCallGraphFromAPK_Empty(t *testing.T) {
	path := writeFixtureAPK(t)
	graph, err := BuildCallGraphFromAPK(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, 0, graph.Stats().TotalMethods)
}

func TestFindWebviewFlowsFromAPK_NoEntryPoints(t *testing.T) {
	path := writeFixtureAPK(t)
	flows, err := FindWebviewFlowsFromAPK(context.Background(), path, 10)
	require.NoError(t, err)
	assert.Empty(t, flows)
}

func TestDecompileClassFromAPK_NotFound(t *testing.T) {
	path := writeFixtureAPK(t)
	_, err := DecompileClassFromAPK(path, "com.example.app.MainActivity")
	assert.Error(t, err)
}
