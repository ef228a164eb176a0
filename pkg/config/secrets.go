package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
)

// LoadSecret reads key from a flat TOML secrets file. A missing file yields an
// empty value.
func LoadSecret(path, key string) (string, error) {
	secrets := map[string]any{}
	if _, err := toml.DecodeFile(path, &secrets); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("could not decode secrets %s: %w", path, err)
	}

	raw, ok := secrets[key]
	if !ok {
		return "", nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("secret %s in %s is not a string", key, path)
	}
	return value, nil
}
