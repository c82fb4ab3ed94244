package config

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/jsonschema-go/jsonschema"
)

// ErrInvalidAdapterConfig wraps a structural validation or decode failure for a
// source_config/rag_config blob.
var ErrInvalidAdapterConfig = fmt.Errorf("invalid adapter config")

// DecodeAdapterConfig validates raw (a KB's or SourceDefinition's decoded
// source_config/rag_config JSON blob) against the JSON Schema derived from T's
// struct tags, then decodes it into T. This is the one place the engine
// crosses from "untyped JSON blob" (the catalog's storage shape, spec §1) to a
// concrete adapter Config struct (internal/source/localfs.Config,
// internal/source/graph.Config, internal/ragsink/fsrag.Config, ...), catching a
// malformed blob before it reaches a sync run rather than failing deep inside
// an adapter mid-sync (SPEC_FULL §10.3).
func DecodeAdapterConfig[T any](raw map[string]any) (T, error) {
	var cfg T

	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return cfg, fmt.Errorf("config: derive schema for %T: %w", cfg, err)
	}
	// Every adapter-config key is optional (an absent key decodes to its zero
	// value); For marks fields without omitempty as required, so clear that list.
	schema.Required = nil
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return cfg, fmt.Errorf("config: resolve schema for %T: %w", cfg, err)
	}
	if err := resolved.Validate(raw); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidAdapterConfig, err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return cfg, fmt.Errorf("config: build decoder for %T: %w", cfg, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, fmt.Errorf("%w: decode %T: %v", ErrInvalidAdapterConfig, cfg, err)
	}

	return cfg, nil
}
