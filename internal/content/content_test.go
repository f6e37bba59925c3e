package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {"type": "string"},
    "depth": {"type": "integer", "minimum": 0}
  }
}`

type testDoc struct {
	Name  string `yaml:"name"`
	Depth int    `yaml:"depth"`
}

func TestDecodeValid(t *testing.T) {
	schema, err := CompileSchema("test.json", testSchema)
	require.NoError(t, err)

	var doc testDoc
	require.NoError(t, Decode([]byte("name: grass\ndepth: 3\n"), schema, &doc))
	assert.Equal(t, testDoc{Name: "grass", Depth: 3}, doc)
}

func TestDecodeRejectsSchemaViolation(t *testing.T) {
	schema, err := CompileSchema("test.json", testSchema)
	require.NoError(t, err)

	var doc testDoc
	assert.Error(t, Decode([]byte("depth: -1\n"), schema, &doc))
	assert.Error(t, Decode([]byte("name: 5\n"), schema, &doc))
}

func TestDecodeFileMissing(t *testing.T) {
	var doc testDoc
	err := DecodeFile(filepath.Join(t.TempDir(), "нет.yaml"), nil, &doc)
	assert.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
