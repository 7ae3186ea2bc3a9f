package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
)

type localSource struct {
	dir         string
	configFiles []string
}

func (s *localSource) Apply(ctx context.Context, receiver interface{}) error {
	for _, configFile := range s.configFiles {
		buffer, err := os.ReadFile(filepath.Join(s.dir, configFile))
		if err != nil {
			if os.IsNotExist(err) && configFile != "default.json" {
				continue
			}
			return errors.Wrapf(err, "Failed to read %v", configFile)
		}

		// Decoding on top of already populated receiver, so only keys
		// present in the file are overridden
		if err := json.Unmarshal(buffer, receiver); err != nil {
			return errors.Wrapf(err, "Failed to parse %v", configFile)
		}
		logger.Debug(ctx, "Loaded config file %v", configFile)
	}
	return nil
}

// LocalOpt is an option of a local config source
type LocalOpt func(s *localSource)

// LocalOpts are options of a local source
var LocalOpts = struct {
	// WithDir option to set local dir to load config from
	WithDir func(dir string) LocalOpt

	// WithAppEnv option will add env (and facet) specific files
	WithAppEnv func(appEnv AppEnv) LocalOpt
}{
	WithDir: func(dir string) LocalOpt {
		return func(s *localSource) {
			s.dir = dir
		}
	},
	WithAppEnv: func(appEnv AppEnv) LocalOpt {
		return func(s *localSource) {
			s.configFiles = append(s.configFiles, appEnv.Name+".json")
			if appEnv.Facet != "" {
				s.configFiles = append(s.configFiles, appEnv.Name+"-"+appEnv.Facet+".json")
			}
		}
	},
}

// NewLocalSource creates a source that reads params from a local fs.
// It is similar to node-config: default.json is required, env specific files are optional
func NewLocalSource(opts ...LocalOpt) (Source, error) {
	source := &localSource{
		configFiles: []string{"default.json"},
	}

	if _, file, _, ok := runtime.Caller(0); ok {
		source.dir = filepath.Join(file, "..", "..", "..", "..", "config")
	} else {
		panic("Can not resolve config dir")
	}

	for _, opt := range opts {
		opt(source)
	}

	return source, nil
}
