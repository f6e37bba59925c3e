package biome

import (
	"fmt"

	"github.com/annel0/voxel-engine/internal/content"
	"github.com/annel0/voxel-engine/internal/world/block"
)

const biomeSchema = `{
  "type": "object",
  "required": ["generation", "top_layers"],
  "properties": {
    "generation": {
      "type": "object",
      "required": ["beach", "water"],
      "properties": {
        "beach": {"type": "string"},
        "water": {"type": "string"}
      }
    },
    "top_layers": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["surface", "subsurface", "depth"],
        "properties": {
          "surface": {"type": "string"},
          "subsurface": {"type": "string"},
          "depth": {"type": "integer", "minimum": 0},
          "temperature": {"type": "number", "minimum": -1, "maximum": 1},
          "humidity": {"type": "number", "minimum": -1, "maximum": 1}
        }
      }
    },
    "decorators": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "type", "climate_range", "frequency"],
        "properties": {
          "name": {"type": "string"},
          "type": {"enum": ["small_tree"]},
          "temperature": {"type": "number"},
          "humidity": {"type": "number"},
          "climate_range": {"type": "number", "minimum": 0},
          "frequency": {"type": "number", "minimum": 0, "maximum": 1},
          "log": {"type": "string"},
          "leaves": {"type": "string"},
          "height": {"type": "integer", "minimum": 0},
          "height_variation": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`

type generationDef struct {
	Beach string `yaml:"beach"`
	Water string `yaml:"water"`
}

type topLayerDef struct {
	Surface     string  `yaml:"surface"`
	Subsurface  string  `yaml:"subsurface"`
	Depth       int     `yaml:"depth"`
	Temperature float64 `yaml:"temperature"`
	Humidity    float64 `yaml:"humidity"`
}

type decoratorDef struct {
	Name            string  `yaml:"name"`
	Type            string  `yaml:"type"`
	Temperature     float64 `yaml:"temperature"`
	Humidity        float64 `yaml:"humidity"`
	ClimateRange    float64 `yaml:"climate_range"`
	Frequency       float64 `yaml:"frequency"`
	Log             string  `yaml:"log"`
	Leaves          string  `yaml:"leaves"`
	Height          int     `yaml:"height"`
	HeightVariation int     `yaml:"height_variation"`
}

type biomeFile struct {
	Generation generationDef  `yaml:"generation"`
	TopLayers  []topLayerDef  `yaml:"top_layers"`
	Decorators []decoratorDef `yaml:"decorators"`
}

// Load разбирает YAML с климатическими данными. Имена блоков разрешаются через реестр.
func Load(data []byte, reg *block.Registry) (*Set, error) {
	schema, err := content.CompileSchema("biomes.schema.json", biomeSchema)
	if err != nil {
		return nil, err
	}

	var file biomeFile
	if err := content.Decode(data, schema, &file); err != nil {
		return nil, fmt.Errorf("ошибка загрузки биомов: %w", err)
	}

	lookup := func(name string) (block.BlockID, error) {
		id, ok := reg.Lookup(name)
		if !ok {
			return 0, fmt.Errorf("неизвестный блок %q", name)
		}
		return id, nil
	}

	set := &Set{}

	if set.Generation.BeachBlock, err = lookup(file.Generation.Beach); err != nil {
		return nil, err
	}
	if set.Generation.WaterBlock, err = lookup(file.Generation.Water); err != nil {
		return nil, err
	}

	for _, def := range file.TopLayers {
		tl := TopLayer{Depth: def.Depth, Temperature: def.Temperature, Humidity: def.Humidity}
		if tl.Surface, err = lookup(def.Surface); err != nil {
			return nil, err
		}
		if tl.Subsurface, err = lookup(def.Subsurface); err != nil {
			return nil, err
		}
		set.TopLayers = append(set.TopLayers, tl)
	}

	for _, def := range file.Decorators {
		kind, err := ParseKind(def.Type)
		if err != nil {
			return nil, err
		}

		d := Decorator{
			Name:         def.Name,
			Kind:         kind,
			Temperature:  def.Temperature,
			Humidity:     def.Humidity,
			ClimateRange: def.ClimateRange,
			Frequency:    def.Frequency,
		}

		switch kind {
		case KindSmallTree:
			if d.SmallTree.Log, err = lookup(def.Log); err != nil {
				return nil, fmt.Errorf("декоратор %s: %w", def.Name, err)
			}
			if d.SmallTree.Leaves, err = lookup(def.Leaves); err != nil {
				return nil, fmt.Errorf("декоратор %s: %w", def.Name, err)
			}
			d.SmallTree.Height = def.Height
			d.SmallTree.HeightVariation = def.HeightVariation
		}

		set.Decorators = append(set.Decorators, d)
	}

	return set, nil
}
