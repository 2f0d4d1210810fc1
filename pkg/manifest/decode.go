package manifest

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// decoder turns manifest bytes of one format into a generic document.
type decoder interface {
	Type() string
	Supports(name string) bool
	Decode(data []byte) (map[string]any, error)
}

var decoders = []decoder{tomlDecoder{}, yamlDecoder{}, jsoncDecoder{}}

func decoderFor(path string) decoder {
	name := filepath.Base(path)
	for _, d := range decoders {
		if d.Supports(name) {
			return d
		}
	}
	return nil
}

type tomlDecoder struct{}

func (tomlDecoder) Type() string { return "toml" }
func (tomlDecoder) Supports(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".toml")
}

func (tomlDecoder) Decode(data []byte) (map[string]any, error) {
	doc := map[string]any{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

type yamlDecoder struct{}

func (yamlDecoder) Type() string { return "yaml" }
func (yamlDecoder) Supports(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func (yamlDecoder) Decode(data []byte) (map[string]any, error) {
	doc := map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

type jsoncDecoder struct{}

func (jsoncDecoder) Type() string { return "jsonc" }
func (jsoncDecoder) Supports(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".json" || ext == ".jsonc"
}

// Decode strips comments and trailing commas before handing off to
// encoding/json. UseNumber keeps integers from turning into floats.
func (jsoncDecoder) Decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.UseNumber()
	doc := map[string]any{}
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
