package app

import (
	"github.com/evgeny-myasishchev/ledger.simple-banking/config"
	coreCfg "github.com/evgeny-myasishchev/ledger.simple-banking/pkg/lib-core-golang/config"
	"github.com/evgeny-myasishchev/ledger.simple-banking/pkg/version"
)

// LoadConfig will load and initialize config.
// Local json files go first, LEDGER_ prefixed env vars override them
func LoadConfig() (*config.Config, error) {
	appEnv := coreCfg.NewAppEnv(version.AppName)

	var cfg config.Config
	if err := coreCfg.Bind(&cfg, appEnv,
		coreCfg.WithSource("local", func() (coreCfg.Source, error) {
			return coreCfg.NewLocalSource(coreCfg.LocalOpts.WithAppEnv(appEnv))
		}),
		coreCfg.WithSource("env", func() (coreCfg.Source, error) {
			return coreCfg.NewEnvSource(coreCfg.WithEnvPrefix("LEDGER_"))
		}),
	); err != nil {
		return nil, err
	}
	return &cfg, nil
}
