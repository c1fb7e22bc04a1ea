package config

import "errors"

var errInvalidMapEntry = errors.New("config: invalid map entry")
