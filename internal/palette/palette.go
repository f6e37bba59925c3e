// Package palette упаковывает чанк в палитру уникальных блоков и поток
// индексов фиксированной ширины в 64-битных словах.
package palette

import (
	"encoding/binary"
	"fmt"

	"github.com/annel0/voxel-engine/internal/util"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

const (
	wordBits  = 64
	wordBytes = 8

	// MaxEntries максимальный размер палитры (все значения BlockID)
	MaxEntries = 256
)

// BitWidth возвращает ширину индекса для палитры из n элементов
func BitWidth(n int) int {
	bw := util.IntLog2(n)
	if bw < 1 {
		bw = 1
	}
	return bw
}

// Capacity возвращает размер палитры, выровненный до степени двойки (байт на диске)
func Capacity(n int) int {
	return 1 << BitWidth(n)
}

// WordCount возвращает число слов, нужных для чанка при данной ширине индекса.
// Индекс никогда не пересекает границу слова.
func WordCount(bitWidth int) int {
	perWord := wordBits / bitWidth
	return (vec.ChunkVolume + perWord - 1) / perWord
}

// Compress строит палитру в порядке первого появления и упаковывает индексы
func Compress(chunk []block.BlockID) (palette []block.BlockID, bitWidth int, words []uint64) {
	if len(chunk) != vec.ChunkVolume {
		panic(fmt.Sprintf("palette: размер чанка %d, ожидался %d", len(chunk), vec.ChunkVolume))
	}

	var lookup [MaxEntries]int
	for i := range lookup {
		lookup[i] = -1
	}

	palette = make([]block.BlockID, 0, 16)
	for _, b := range chunk {
		if lookup[b] < 0 {
			lookup[b] = len(palette)
			palette = append(palette, b)
		}
	}

	bitWidth = BitWidth(len(palette))
	words = make([]uint64, WordCount(bitWidth))

	word, bit := 0, 0
	for _, b := range chunk {
		words[word] |= uint64(lookup[b]) << bit
		bit += bitWidth
		if bit+bitWidth > wordBits {
			bit = 0
			word++
		}
	}

	return palette, bitWidth, words
}

// Decompress восстанавливает чанк из палитры и слов в dst
func Decompress(palette []block.BlockID, bitWidth int, words []uint64, dst []block.BlockID) error {
	if len(dst) != vec.ChunkVolume {
		return fmt.Errorf("palette: размер приёмника %d, ожидался %d", len(dst), vec.ChunkVolume)
	}
	if len(palette) == 0 || len(palette) > MaxEntries {
		return fmt.Errorf("palette: недопустимый размер палитры %d", len(palette))
	}
	if len(words) < WordCount(bitWidth) {
		return fmt.Errorf("palette: недостаточно слов: %d < %d", len(words), WordCount(bitWidth))
	}

	mask := uint64(1)<<bitWidth - 1
	word, bit := 0, 0
	for i := range dst {
		idx := int((words[word] >> bit) & mask)
		if idx >= len(palette) {
			return fmt.Errorf("palette: индекс %d вне палитры длины %d", idx, len(palette))
		}
		dst[i] = palette[idx]

		bit += bitWidth
		if bit+bitWidth > wordBits {
			bit = 0
			word++
		}
	}
	return nil
}

// EncodePayload собирает полезную нагрузку региона:
// палитра, дополненная до 2^bitWidth байт, затем слова в little-endian.
func EncodePayload(chunk []block.BlockID) (payload []byte, paletteLen int) {
	palette, bitWidth, words := Compress(chunk)

	capacity := 1 << bitWidth
	payload = make([]byte, capacity+len(words)*wordBytes)
	for i, b := range palette {
		payload[i] = byte(b)
	}

	out := payload[capacity:]
	for i, w := range words {
		binary.LittleEndian.PutUint64(out[i*wordBytes:], w)
	}
	return payload, len(palette)
}

// DecodePayload разбирает полезную нагрузку, записанную EncodePayload
func DecodePayload(payload []byte, paletteLen int, dst []block.BlockID) error {
	if paletteLen < 1 || paletteLen > MaxEntries {
		return fmt.Errorf("palette: недопустимая длина палитры %d", paletteLen)
	}

	bitWidth := BitWidth(paletteLen)
	capacity := 1 << bitWidth
	if len(payload) < capacity {
		return fmt.Errorf("palette: нагрузка %d байт короче палитры %d", len(payload), capacity)
	}

	palette := make([]block.BlockID, paletteLen)
	for i := range palette {
		palette[i] = block.BlockID(payload[i])
	}

	wordCount := (len(payload) - capacity) / wordBytes
	words := make([]uint64, wordCount)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(payload[capacity+i*wordBytes:])
	}

	return Decompress(palette, bitWidth, words, dst)
}
