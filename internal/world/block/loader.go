package block

import (
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/annel0/voxel-engine/internal/content"
)

const contentSchema = `{
  "type": "object",
  "properties": {
    "blocks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "display_name": {"type": "string"},
          "light": {"type": "boolean"},
          "translucent": {"type": "boolean"},
          "liquid": {"type": "boolean"},
          "audio": {
            "type": "object",
            "properties": {
              "step": {"type": "string"},
              "destroy": {"type": "string"},
              "place": {"type": "string"}
            }
          },
          "texture": {"$ref": "#/definitions/tile"},
          "textures": {"type": "array", "minItems": 6, "maxItems": 6, "items": {"$ref": "#/definitions/tile"}},
          "climate_overlay": {"type": "array", "minItems": 6, "maxItems": 6, "items": {"$ref": "#/definitions/tile"}}
        }
      }
    },
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "display_name": {"type": "string"}
        }
      }
    }
  },
  "definitions": {
    "tile": {
      "type": "array",
      "minItems": 2,
      "maxItems": 2,
      "items": {"type": "integer", "minimum": 0, "maximum": 15}
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func blockSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = content.CompileSchema("blocks.schema.json", contentSchema)
	})
	return compiledSchema, schemaErr
}

type audioDef struct {
	Step    string `yaml:"step"`
	Destroy string `yaml:"destroy"`
	Place   string `yaml:"place"`
}

type blockDef struct {
	Name           string   `yaml:"name"`
	DisplayName    string   `yaml:"display_name"`
	Light          bool     `yaml:"light"`
	Translucent    bool     `yaml:"translucent"`
	Liquid         bool     `yaml:"liquid"`
	Audio          audioDef `yaml:"audio"`
	Texture        []int    `yaml:"texture"`
	Textures       [][]int  `yaml:"textures"`
	ClimateOverlay [][]int  `yaml:"climate_overlay"`
}

type itemDef struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
}

type contentFile struct {
	Blocks []blockDef `yaml:"blocks"`
	Items  []itemDef  `yaml:"items"`
}

func toTexture(v []int) Texture {
	if len(v) != 2 {
		return Texture{}
	}
	return Texture{v[0], v[1]}
}

func (d blockDef) toData() Data {
	data := Data{
		Name:           d.Name,
		DisplayName:    d.DisplayName,
		AudioOnStep:    d.Audio.Step,
		AudioOnDestroy: d.Audio.Destroy,
		AudioOnPlace:   d.Audio.Place,
		IsLight:        d.Light,
		IsTranslucent:  d.Translucent,
		IsLiquid:       d.Liquid,
	}

	for f := 0; f < FaceCount; f++ {
		if len(d.Textures) == FaceCount {
			data.Textures[f] = toTexture(d.Textures[f])
		} else {
			data.Textures[f] = toTexture(d.Texture)
		}
		if len(d.ClimateOverlay) == FaceCount {
			data.ClimateOverlayTextures[f] = toTexture(d.ClimateOverlay[f])
		}
	}
	return data
}

// LoadContent разбирает YAML с описанием блоков и предметов и добавляет их в сборщик
func (b *Builder) LoadContent(data []byte) error {
	schema, err := blockSchema()
	if err != nil {
		return err
	}

	var file contentFile
	if err := content.Decode(data, schema, &file); err != nil {
		return fmt.Errorf("ошибка загрузки блоков: %w", err)
	}

	for _, def := range file.Blocks {
		if _, err := b.AddBlock(def.toData()); err != nil {
			return err
		}
	}
	for _, def := range file.Items {
		if _, err := b.AddItem(ItemData{Name: def.Name, DisplayName: def.DisplayName, Kind: ItemKindMaterial}); err != nil {
			return err
		}
	}
	return nil
}
