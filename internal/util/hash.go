package util

// HashTriple32 перемешивает биты 32-битного числа (три раунда xorshift-multiply).
// Используется для детерминированной расстановки декораторов.
func HashTriple32(x uint32) uint32 {
	x ^= x >> 17
	x *= 0xed5ad4bb
	x ^= x >> 11
	x *= 0xac4c1b51
	x ^= x >> 15
	x *= 0x31848bab
	x ^= x >> 14
	return x
}
