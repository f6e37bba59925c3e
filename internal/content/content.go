// Package content читает файлы данных (YAML) и проверяет их JSON-схемой
// до разбора в структуры.
package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// CompileSchema компилирует JSON-схему из строки
func CompileSchema(name, schema string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("ошибка добавления схемы %s: %w", name, err)
	}
	s, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("ошибка компиляции схемы %s: %w", name, err)
	}
	return s, nil
}

// Decode проверяет YAML документ схемой и разбирает его в out
func Decode(data []byte, schema *jsonschema.Schema, out interface{}) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("ошибка разбора YAML: %w", err)
	}

	if schema != nil {
		// Валидатор ожидает значения в форме encoding/json
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("ошибка преобразования в JSON: %w", err)
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()

		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("ошибка чтения JSON: %w", err)
		}
		if err := schema.Validate(value); err != nil {
			return fmt.Errorf("данные не прошли проверку схемы: %w", err)
		}
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("ошибка разбора YAML: %w", err)
	}
	return nil
}

// DecodeFile читает файл и вызывает Decode
func DecodeFile(path string, schema *jsonschema.Schema, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ошибка чтения %s: %w", path, err)
	}
	if err := Decode(data, schema, out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
