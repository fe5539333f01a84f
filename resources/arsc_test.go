package resources

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildStringPoolChunk assembles a minimal UTF-8 RES_STRING_POOL_TYPE chunk
// (header + this package's own test helper, independent of restbl's
// internals) containing strs, in the on-disk layout restbl.Parse expects.
func buildStringPoolChunk(strs []string) []byte {
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

	stringsStart := uint32(8 + offsetsStart + offsetsSize) // relative to chunk start, including 8-byte header
	bodyLen := offsetsStart + offsetsSize + len(stringsBody)
	chunkSize := uint32(8 + bodyLen)

	buf := make([]byte, chunkSize)
	binary.LittleEndian.PutUint16(buf[0:2], 0x0001) // type: string pool
	binary.LittleEndian.PutUint16(buf[2:4], 28)      // header len (unused by parser beyond chunk header)
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

func buildResTable(strs []string) []byte {
	pool := buildStringPoolChunk(strs)
	total := 12 + len(pool)
	buf := make([]byte, total)
	binary.LittleEndian.PutUint16(buf[0:2], 0x0002) // RES_TABLE_TYPE
	binary.LittleEndian.PutUint16(buf[2:4], 12)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(total))
	binary.LittleEndian.PutUint32(buf[8:12], 1) // package count, unused
	copy(buf[12:], pool)
	return buf
}

func TestParseStringPool(t *testing.T) {
	data := buildResTable([]string{"app_name", "hello"})
	table, err := ParseStringPool(data)
	require.NoError(t, err)

	s, err := table.ResolveString(0)
	require.NoError(t, err)
	assert.Equal(t, "app_name", s)

	s, err = table.ResolveString(1)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestParseStringPool_NegativeIndexIsEmpty(t *testing.T) {
	data := buildResTable([]string{"x"})
	table, err := ParseStringPool(data)
	require.NoError(t, err)

	s, err := table.ResolveString(-1)
	require.NoError(t, err)
	assert.Equal(t, "", s)
}

func TestParseStringPool_WrongTopLevelChunk(t *testing.T) {
	data := buildStringPoolChunk([]string{"x"}) // not wrapped in a RES_TABLE header
	_, err := ParseStringPool(data)
	assert.Error(t, err)
}
