package config

import (
	"encoding/json"
	"io"
	"os"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// Read reads a config from the given file.
func Read(filePath string) (*Config, error) {
	//nolint:gosec
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return FromReader(filePath, f)
}

// FromReader reads a config from the given reader and specifies where, if applicable, the file
// the reader originated from.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	var attrs map[string]interface{}
	if err := json.NewDecoder(r).Decode(&attrs); err != nil {
		return nil, errors.Wrap(err, "failed to decode Config from json")
	}
	cfg, err := FromMap(attrs)
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath = originalPath
	return cfg, nil
}

// FromMap decodes attributes over the defaults and validates the result. Durations may be
// given as strings such as "500ms" or as nanoseconds.
func FromMap(attrs map[string]interface{}) (*Config, error) {
	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      cfg,
		ErrorUnused: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			costValueHook,
		),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrap(err, "failed to decode config attributes")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// costValueHook rejects numbers that do not fit a costmap cell before they wrap around.
func costValueHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.Uint8 {
		return data, nil
	}
	if v, ok := data.(float64); ok && (v < 0 || v > 255 || v != float64(int(v))) {
		return nil, errors.Errorf("%v is not a valid cell cost", v)
	}
	return data, nil
}
