package mesher

// Углы единичного куба. Индексы 0-3 лежат в плоскости y=0, 4-7 в y=1.
var cornerPositions = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {0, 0, 1}, {1, 0, 1},
	{0, 1, 0}, {1, 1, 0}, {0, 1, 1}, {1, 1, 1},
}

var cornerUVs = [4][2]int{
	{0, 0}, {1, 0}, {0, 1}, {1, 1},
}

// Нормали в порядке граней X-, X+, Y-, Y+, Z-, Z+
var faceNormals = [6][3]int{
	{-1, 0, 0}, {1, 0, 0},
	{0, -1, 0}, {0, 1, 0},
	{0, 0, -1}, {0, 0, 1},
}

// Углы куба для четырёх вершин грани
var faceCorners = [6][4]int{
	{4, 0, 6, 2},
	{1, 5, 3, 7},
	{0, 1, 2, 3},
	{5, 4, 7, 6},
	{4, 5, 0, 1},
	{2, 3, 6, 7},
}

// Та же грань с повёрнутой диагональю
var faceCornersFlipped = [6][4]int{
	{0, 2, 4, 6},
	{5, 7, 1, 3},
	{1, 3, 0, 2},
	{4, 6, 5, 7},
	{5, 1, 4, 0},
	{3, 7, 2, 6},
}

// Порядок индексов внутри грани
var quadIndices = [6]uint32{0, 1, 2, 3, 2, 1}

// Соседи 3x3x3 (индекс dx+1 + (dy+1)*3 + (dz+1)*9) для затенения угла:
// две боковые клетки и диагональная
var aoNeighbours = [6][4][3]int{
	{{3, 15, 6}, {3, 9, 0}, {15, 21, 24}, {9, 21, 18}},
	{{5, 11, 2}, {5, 17, 8}, {11, 23, 20}, {17, 23, 26}},
	{{1, 9, 0}, {1, 11, 2}, {9, 19, 18}, {11, 19, 20}},
	{{7, 17, 8}, {7, 15, 6}, {17, 25, 26}, {15, 25, 24}},
	{{3, 7, 6}, {5, 7, 8}, {1, 3, 0}, {1, 5, 2}},
	{{19, 21, 18}, {19, 23, 20}, {21, 25, 24}, {23, 25, 26}},
}

// Клетка перед гранью, с которой берётся освещённость угла
var faceFront = [6]int{12, 14, 10, 16, 4, 22}
