// Package assets встраивает файлы данных по умолчанию в бинарник.
package assets

import (
	_ "embed"
)

// Blocks описание блоков и предметов по умолчанию
//
//go:embed blocks.yaml
var Blocks []byte

// Biomes климатические данные по умолчанию
//
//go:embed biomes.yaml
var Biomes []byte
