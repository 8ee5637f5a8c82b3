package config

import (
	"errors"

	"github.com/knadh/koanf/maps"
)

var errReadBytesNotSupported = errors.New("config: map provider does not support ReadBytes")

// mapProvider loads a map with dotted keys ("store.dir") into koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}
