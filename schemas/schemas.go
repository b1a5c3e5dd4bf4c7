// Package schemas embeds the JSON schemas for pattern files and save files.
package schemas

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	PatternURL = "https://patchwork.studio/schemas/pattern.schema.json"
	SaveURL    = "https://patchwork.studio/schemas/save.schema.json"
)

//go:embed pattern.schema.json
var patternSource string

//go:embed save.schema.json
var saveSource string

type compiled struct {
	once   sync.Once
	url    string
	source string
	schema *jsonschema.Schema
	err    error
}

func (c *compiled) get() (*jsonschema.Schema, error) {
	c.once.Do(func() {
		c.schema, c.err = jsonschema.CompileString(c.url, c.source)
	})
	return c.schema, c.err
}

var (
	pattern = &compiled{url: PatternURL, source: patternSource}
	save    = &compiled{url: SaveURL, source: saveSource}
)

func Pattern() (*jsonschema.Schema, error) { return pattern.get() }
func Save() (*jsonschema.Schema, error) { return save.get() }

// ValidatePattern checks a pattern file body.
func ValidatePattern(raw []byte) error { return validate(pattern, raw) }

// ValidateSave checks a save file body.
func ValidateSave(raw []byte) error { return validate(save, raw) }

func validate(c *compiled, raw []byte) error {
	s, err := c.get()
	if err != nil {
		return fmt.Errorf("compile %s: %w", c.url, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return s.Validate(v)
}
