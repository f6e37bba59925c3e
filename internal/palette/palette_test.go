package palette

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

func newChunk() []block.BlockID {
	return make([]block.BlockID, vec.ChunkVolume)
}

func TestSingleBlockChunk(t *testing.T) {
	chunk := newChunk()
	for i := range chunk {
		chunk[i] = 7
	}

	palette, bitWidth, words := Compress(chunk)
	assert.Equal(t, []block.BlockID{7}, palette)
	assert.Equal(t, 1, bitWidth)
	assert.Len(t, words, vec.ChunkVolume/64)
	for _, w := range words {
		assert.Zero(t, w, "все индексы должны быть нулевыми")
	}

	out := newChunk()
	require.NoError(t, Decompress(palette, bitWidth, words, out))
	assert.Equal(t, chunk, out)
}

func TestAllBlockIDsRoundTrip(t *testing.T) {
	chunk := newChunk()
	for i := range chunk {
		chunk[i] = block.BlockID((i * 7) % 256)
	}

	palette, bitWidth, words := Compress(chunk)
	assert.Len(t, palette, 256)
	assert.Equal(t, 8, bitWidth)
	assert.Len(t, words, vec.ChunkVolume/8)

	out := newChunk()
	require.NoError(t, Decompress(palette, bitWidth, words, out))
	assert.Equal(t, chunk, out)
}

func TestPaletteFirstSeenOrder(t *testing.T) {
	chunk := newChunk()
	chunk[0] = 9
	chunk[1] = 3
	chunk[2] = 9
	chunk[3] = 0

	palette, bitWidth, _ := Compress(chunk)
	assert.Equal(t, []block.BlockID{9, 3, 0}, palette)
	assert.Equal(t, 2, bitWidth)
}

func TestEntriesDoNotStraddleWords(t *testing.T) {
	// 5 блоков -> ширина 3 бита, 21 индекс на слово, один бит в конце слова не используется
	chunk := newChunk()
	for i := range chunk {
		chunk[i] = block.BlockID(i % 5)
	}

	palette, bitWidth, words := Compress(chunk)
	require.Len(t, palette, 5)
	require.Equal(t, 3, bitWidth)
	assert.Len(t, words, (vec.ChunkVolume+20)/21)

	// Индекс 21 начинается с нулевого бита второго слова
	assert.Equal(t, uint64(21%5), words[1]&0x7)
	// Старший бит первого слова не используется
	assert.Zero(t, words[0]>>63)
	// Первые индексы лежат подряд: 0,1,2,3,4
	assert.Equal(t, uint64(0|1<<3|2<<6|3<<9|4<<12), words[0]&0x7fff)
}

func TestPayloadLayout(t *testing.T) {
	chunk := newChunk()
	chunk[0] = 4
	chunk[1] = 2

	payload, paletteLen := EncodePayload(chunk)
	require.Equal(t, 3, paletteLen)

	// Палитра 3 элемента -> ширина 2 -> 4 байта под палитру
	assert.Equal(t, []byte{4, 2, 0, 0}, payload[:4])
	assert.Len(t, payload, 4+WordCount(2)*8)

	first := binary.LittleEndian.Uint64(payload[4:])
	assert.Equal(t, uint64(0|1<<2|2<<4), first&0x3f)

	out := newChunk()
	require.NoError(t, DecodePayload(payload, paletteLen, out))
	assert.Equal(t, chunk, out)
}

func TestDecodeRejectsCorruptPayload(t *testing.T) {
	out := newChunk()
	assert.Error(t, DecodePayload([]byte{1, 2}, 3, out))
	assert.Error(t, DecodePayload(make([]byte, 64), 0, out))
	assert.Error(t, DecodePayload(make([]byte, 16), 2, out), "слов недостаточно")
}

func TestCompressedSizeByTier(t *testing.T) {
	cases := []struct {
		distinct int
		words    int
	}{
		{1, 512},
		{2, 512},
		{4, 1024},
		{16, 2048},
		{256, 4096},
	}

	for _, c := range cases {
		chunk := newChunk()
		for i := range chunk {
			chunk[i] = block.BlockID(i % c.distinct)
		}
		_, _, words := Compress(chunk)
		assert.Len(t, words, c.words, "уникальных блоков: %d", c.distinct)
	}
}
