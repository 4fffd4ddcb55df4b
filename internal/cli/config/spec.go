package config

import "time"

// CLIConfig is the configuration for kvmesh-cli.
type CLIConfig struct {
	Server  string        `koanf:"server" json:"server" yaml:"server"`
	APIKey  string        `koanf:"api_key" json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Output  string        `koanf:"output" json:"output" yaml:"output"`
	Timeout time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout"`

	// CAFile is a PEM bundle trusted for https servers.
	CAFile   string `koanf:"ca_file" json:"ca_file,omitempty" yaml:"ca_file,omitempty"`
	Insecure bool   `koanf:"insecure" json:"insecure,omitempty" yaml:"insecure,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server:  "http://127.0.0.1:8080",
		Output:  "text",
		Timeout: 30 * time.Second,
	}
}
