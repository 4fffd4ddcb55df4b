package config

import (
	"fmt"

	"github.com/yndnr/kvmesh-go/internal/infra/confloader"
)

// Load returns the defaults overlaid with the file at path (optional) and
// KVMESH_ environment variables, then verified.
func Load(path string) (*ServerConfig, error) {
	cfg := Default()

	l := confloader.NewLoader(confloader.WithConfigFile(path))
	if err := l.Load(cfg); err != nil {
		return nil, err
	}

	if err := Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
