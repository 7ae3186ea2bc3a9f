package config

import (
	"context"
	"flag"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/lib-core-golang/diag"
)

const (
	appEnvVar = "APP_ENV"

	facetVar = "APP_ENV_FACET"
)

var logger = diag.CreateLogger()

// AppEnv represents app env
type AppEnv struct {
	// ServiceName is a name of a current service
	ServiceName string

	// Name is a env name. By default taken from APP_ENV. Corresponds to NODE_ENV
	Name string

	// Facet is a env facet like preprod (for production). By default taken from APP_ENV_FACET. Corresponds to NODE_APP_INSTANCE
	Facet string
}

type appEnvCfg struct {
	lookupFlag func(name string) *flag.Flag
}

type appEnvOpt func(*appEnvCfg)

func withLookupFlag(lookupFlag func(name string) *flag.Flag) appEnvOpt {
	return func(cfg *appEnvCfg) {
		cfg.lookupFlag = lookupFlag
	}
}

// NewAppEnv creates a new instance of the app env from os env
// Will use "dev" by default and "test" when running tests
func NewAppEnv(serviceName string, opts ...appEnvOpt) AppEnv {
	cfg := appEnvCfg{
		lookupFlag: flag.Lookup,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	appEnv := os.Getenv(appEnvVar)
	if appEnv == "" {
		if v := cfg.lookupFlag("test.v"); v == nil {
			appEnv = "dev"
		} else {
			appEnv = "test"
		}
	}
	return AppEnv{
		Name:        appEnv,
		Facet:       os.Getenv(facetVar),
		ServiceName: serviceName,
	}
}

// Source populates a config receiver (pointer to a struct)
type Source interface {
	Apply(ctx context.Context, receiver interface{}) error
}

// SourceFactory is a func that creates an instance of a source
type SourceFactory func() (Source, error)

type namedSource struct {
	name   string
	source Source
}

type binding struct {
	sources []namedSource
}

// BindOpt represents binding option
type BindOpt func(b *binding) error

// WithSource is a binding option. Sources are applied in the order given,
// later sources override values of earlier ones
func WithSource(name string, factory SourceFactory) BindOpt {
	return func(b *binding) error {
		source, err := factory()
		if err != nil {
			return errors.Wrapf(err, "Failed to create source %v", name)
		}
		b.sources = append(b.sources, namedSource{name: name, source: source})
		return nil
	}
}

// Bind will populate the receiver from the given sources
func Bind(receiver interface{}, appEnv AppEnv, opts ...BindOpt) error {
	b := &binding{}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return errors.Wrap(err, "Failed to process bind option")
		}
	}

	ctx := diag.ContextWithRequestID(context.Background(), uuid.NewString())
	logger.Info(ctx, "Loading config values (env=%v, facet=%v)", appEnv.Name, appEnv.Facet)
	for _, src := range b.sources {
		if err := src.source.Apply(ctx, receiver); err != nil {
			return errors.Wrapf(err, "Failed to load from source %v", src.name)
		}
		logger.Debug(ctx, "Applied %v source", src.name)
	}
	return nil
}
