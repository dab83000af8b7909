// Package metafile loads small TOML side-files (channel metadata, server
// tunables) with koanf, the configuration stack thesaheb1-whatomate wires
// up for its own service config (koanf/v2 + providers/file +
// parsers/toml).
package metafile

import (
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// Load reads the TOML file at path and unmarshals it into out.
func Load(path string, out interface{}) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return errors.Wrapf(err, "metafile: load %s", path)
	}
	if err := k.Unmarshal("", out); err != nil {
		return errors.Wrapf(err, "metafile: unmarshal %s", path)
	}
	return nil
}
