package assets

import (
	"fmt"
	"os"

	"github.com/annel0/voxel-engine/internal/world/biome"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// Load собирает реестр блоков и климатические данные. Пустой путь означает
// встроенный файл. ids: карта идентификаторов сохранения (nil: новая).
func Load(blocksPath, biomesPath string, ids *block.IDMap) (*block.Registry, *biome.Set, error) {
	blocksData, err := readOrEmbedded(blocksPath, Blocks)
	if err != nil {
		return nil, nil, err
	}
	biomesData, err := readOrEmbedded(biomesPath, Biomes)
	if err != nil {
		return nil, nil, err
	}

	builder := block.NewBuilder(ids)
	if err := builder.LoadContent(blocksData); err != nil {
		return nil, nil, err
	}
	reg := builder.Build()

	set, err := biome.Load(biomesData, reg)
	if err != nil {
		return nil, nil, err
	}
	return reg, set, nil
}

// LoadDefault загружает встроенные данные с новой картой идентификаторов
func LoadDefault() (*block.Registry, *biome.Set, error) {
	return Load("", "", nil)
}

func readOrEmbedded(path string, embedded []byte) ([]byte, error) {
	if path == "" {
		return embedded, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", path, err)
	}
	return data, nil
}
