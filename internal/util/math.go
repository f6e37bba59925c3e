package util

// IntLog2 возвращает наименьшее i, для которого 1<<i >= x
func IntLog2(x int) int {
	i := 0
	for (1 << i) < x {
		i++
	}
	return i
}

// Clamp ограничивает значение диапазоном [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Lerp линейная интерполяция между a и b
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Lerp3D трилинейная интерполяция значений в восьми углах ячейки
func Lerp3D(v000, v100, v010, v110, v001, v101, v011, v111, x, y, z float64) float64 {
	return Lerp(
		Lerp(Lerp(v000, v100, x), Lerp(v010, v110, x), y),
		Lerp(Lerp(v001, v101, x), Lerp(v011, v111, x), y),
		z,
	)
}

// Abs модуль целого числа
func Abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
