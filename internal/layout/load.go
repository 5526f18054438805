package layout

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json default.json
var builtin embed.FS

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func layoutSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := builtin.ReadFile("schema.json")
		if err != nil {
			schemaErr = err
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("layout.schema.json", bytes.NewReader(raw)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = compiler.Compile("layout.schema.json")
	})
	return schema, schemaErr
}

// Decode reads a layout document, checks it against the embedded JSON Schema,
// and re-validates the structural invariants on the decoded tree.
func Decode(r io.Reader) (*Keyboard, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}

	s, err := layoutSchema()
	if err != nil {
		return nil, fmt.Errorf("compile layout schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("layout schema: %w", err)
	}

	var kb Keyboard
	if err := json.Unmarshal(raw, &kb); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	if err := Validate(&kb); err != nil {
		return nil, err
	}
	return &kb, nil
}

// Load reads and validates a layout file from disk.
func Load(path string) (*Keyboard, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layout %q: %w", path, err)
	}
	defer f.Close()

	kb, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("layout %q: %w", path, err)
	}
	return kb, nil
}

// Default returns the embedded fallback layout.
func Default() *Keyboard {
	raw, err := builtin.ReadFile("default.json")
	if err != nil {
		panic(err)
	}
	kb, err := Decode(bytes.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return kb
}
