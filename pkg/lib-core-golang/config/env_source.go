package config

import (
	"context"

	"github.com/caarlos0/env/v11"
)

type envSource struct {
	opts env.Options
}

// Apply overrides receiver fields that have `env` tag and corresponding var set.
// Fields with no var set keep values from previous sources
func (s *envSource) Apply(ctx context.Context, receiver interface{}) error {
	return env.ParseWithOptions(receiver, s.opts)
}

// EnvOpt is an option of an env source
type EnvOpt func(s *envSource)

// WithEnvPrefix will prepend each env var name with a prefix
func WithEnvPrefix(prefix string) EnvOpt {
	return func(s *envSource) {
		s.opts.Prefix = prefix
	}
}

// WithEnvironment will use given vars instead of the process environment
func WithEnvironment(vars map[string]string) EnvOpt {
	return func(s *envSource) {
		s.opts.Environment = vars
	}
}

// NewEnvSource creates a source that reads values from environment variables
func NewEnvSource(opts ...EnvOpt) (Source, error) {
	source := &envSource{}
	for _, opt := range opts {
		opt(source)
	}
	return source, nil
}
