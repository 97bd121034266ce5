package config

import (
	"encoding/json"

	"github.com/segmentio/fasthash/fnv1a"
)

// Hash fingerprints a config by its canonical JSON form. Nil hashes to 0.
func Hash(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	return fnv1a.HashBytes64(b)
}
