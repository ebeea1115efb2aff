package decode

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Options tunes Decode.
type Options struct {
	// WeaklyTypedInput lets "80" decode into an int, 80.7 into 80 and so on.
	WeaklyTypedInput bool
}

// DefaultOptions is lenient decoding.
func DefaultOptions() Options {
	return Options{
		WeaklyTypedInput: true,
	}
}

// Strict disables weak typing: a number never becomes a string.
func Strict() Options {
	return Options{WeaklyTypedInput: false}
}

// Map decodes a JSON object into a generic map. Anything that is not an
// object (arrays, scalars, garbage) is an error.
func Map(raw []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("not an object")
	}
	return m, nil
}

// Decode maps a generic value (usually map[string]any from encoding/json)
// onto T. Struct fields are matched by their `json` tag.
func Decode[T any](in any, opts ...Options) (*T, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}

	var out T
	decCfg := &mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			floatToIntHook(),
			jsonRawStringToMapHook(),
		),
	}

	dec, err := mapstructure.NewDecoder(decCfg)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}

// floatToIntHook truncates float64 into integer kinds, the way parseInt
// treats "80.9" on the wire.
func floatToIntHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.Float64 {
			return data, nil
		}
		switch to {
		case reflect.Int:
			return int(data.(float64)), nil
		case reflect.Int32:
			return int32(data.(float64)), nil
		case reflect.Int64:
			return int64(data.(float64)), nil
		}
		return data, nil
	}
}

// jsonRawStringToMapHook turns a JSON string into map[string]any when the
// target is a map (some clients double-encode nested payloads).
func jsonRawStringToMapHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.String || to != reflect.Map {
			return data, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(data.(string)), &m); err == nil {
			return m, nil
		}
		return data, nil
	}
}
