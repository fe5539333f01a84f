package dex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeConst4Positive(t *testing.T) {
	insns := DecodeInstructions([]uint16{0x1012})
	require.Len(t, insns, 1)
	assert.Equal(t, KindConst4, insns[0].Kind)
	assert.Equal(t, 0, insns[0].Dest)
	assert.Equal(t, int64(1), insns[0].Value)
	assert.Equal(t, 1, insns[0].Len)
}

// const/4 v0, #-1: the 4-bit literal 0xF sign-extends to -1.
func TestDecodeConst4Negative(t *testing.T) {
	insns := DecodeInstructions([]uint16{0xF012})
	require.Len(t, insns, 1)
	assert.Equal(t, KindConst4, insns[0].Kind)
	assert.Equal(t, 0, insns[0].Dest)
	assert.Equal(t, int64(-1), insns[0].Value)
}

func TestDecodeConst16(t *testing.T) {
	// const/16 v1, #300: opcode 0x13, dest in low byte of high... per
	// spec dest = (word>>8)&0xFF, so word's high byte holds the full
	// 8-bit dest register, and the next word is the signed 16-bit value.
	word := uint16(0x13) | uint16(1)<<8
	insns := DecodeInstructions([]uint16{word, 300})
	require.Len(t, insns, 1)
	assert.Equal(t, KindConst16, insns[0].Kind)
	assert.Equal(t, 1, insns[0].Dest)
	assert.Equal(t, int64(300), insns[0].Value)
	assert.Equal(t, 2, insns[0].Len)
}

func TestDecodeConst32(t *testing.T) {
	word := uint16(0x14) | uint16(2)<<8
	insns := DecodeInstructions([]uint16{word, 0x5678, 0x1234})
	require.Len(t, insns, 1)
	assert.Equal(t, KindConst, insns[0].Kind)
	assert.Equal(t, 2, insns[0].Dest)
	assert.Equal(t, int64(0x12345678), insns[0].Value)
	assert.Equal(t, 3, insns[0].Len)
}

func TestDecodeConstString(t *testing.T) {
	word := uint16(0x1a) | uint16(3)<<8
	insns := DecodeInstructions([]uint16{word, 42})
	require.Len(t, insns, 1)
	assert.Equal(t, KindConstString, insns[0].Kind)
	assert.Equal(t, 3, insns[0].Dest)
	assert.Equal(t, uint32(42), insns[0].StrIdx)
}

func TestDecodeInvokeVirtualNonRange(t *testing.T) {
	// invoke-virtual {v0, v1}, method@7: arg_count=2, first arg (receiver)
	// v0 in bits 8-11 of word0, remaining arg nibbles in word2.
	word0 := uint16(OpInvokeVirtual) | uint16(2)<<12 | uint16(0)<<8
	word1 := uint16(7) // method index
	word2 := uint16(1) // second arg register v1 in low nibble
	insns := DecodeInstructions([]uint16{word0, word1, word2})
	require.Len(t, insns, 1)
	assert.Equal(t, KindInvoke, insns[0].Kind)
	assert.Equal(t, 2, insns[0].ArgCount)
	assert.Equal(t, uint32(7), insns[0].MethodIdx)
	assert.Equal(t, []int{0, 1}, insns[0].Args)
	assert.Equal(t, 3, insns[0].Len)
}

func TestDecodeInvokeVirtualRange(t *testing.T) {
	word0 := uint16(OpInvokeVirtualRange) | uint16(3)<<8
	word1 := uint16(9)  // method index
	word2 := uint16(5)  // first_arg
	insns := DecodeInstructions([]uint16{word0, word1, word2})
	require.Len(t, insns, 1)
	assert.Equal(t, KindInvokeRange, insns[0].Kind)
	assert.Equal(t, 3, insns[0].ArgCount)
	assert.Equal(t, uint32(9), insns[0].MethodIdx)
	assert.Equal(t, 5, insns[0].FirstArg)
}

func TestDecodeUnknownOpcodeAdvancesOneWord(t *testing.T) {
	insns := DecodeInstructions([]uint16{0x00, 0x1012})
	require.Len(t, insns, 2)
	assert.Equal(t, KindUnknown, insns[0].Kind)
	assert.Equal(t, 1, insns[0].Len)
	assert.Equal(t, KindConst4, insns[1].Kind)
}

func TestDecodeTruncatedInvokeDoesNotOverread(t *testing.T) {
	word0 := uint16(OpInvokeVirtual) | uint16(1)<<12
	insns := DecodeInstructions([]uint16{word0})
	require.Len(t, insns, 1)
	assert.Equal(t, KindUnknown, insns[0].Kind)
	assert.Equal(t, 1, insns[0].Len)
}

// Length-preservation invariant: the sum of instruction word lengths equals
// the input code-unit count for any decodable prefix.
func TestDecodeLengthPreservation(t *testing.T) {
	words := []uint16{
		0x1012,                                   // const/4
		uint16(0x13) | uint16(1)<<8, 5,           // const/16
		uint16(OpInvokeStatic) | uint16(1)<<12, 3, 0, // invoke-static
	}
	insns := DecodeInstructions(words)
	total := 0
	for _, insn := range insns {
		total += insn.Len
	}
	assert.Equal(t, len(words), total)
}
