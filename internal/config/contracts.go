package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ContractYAML names one contract's address and the ABI file describing it,
// matching the `contract_client` map a deployment's YAML file carries.
type ContractYAML struct {
	Address string `yaml:"address"`
	ABI     string `yaml:"abi"`
}

// ContractsConfig is the static, rarely-changing contract/address map a
// deployment ships alongside the environment-variable surface: addresses
// and ABI paths belong here, secrets and risk limits stay in env vars.
type ContractsConfig struct {
	Contracts map[string]ContractYAML `yaml:"contract_client"`
}

// LoadContracts reads path as a ContractsConfig. An empty path is not an
// error — it yields a ContractsConfig with no entries, so every lookup
// falls through to the caller's own default.
func LoadContracts(path string) (*ContractsConfig, error) {
	if path == "" {
		return &ContractsConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contracts config %s: %w", path, err)
	}
	var cfg ContractsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse contracts config %s: %w", path, err)
	}
	return &cfg, nil
}

// Lookup returns the named contract entry, if one is configured.
func (c *ContractsConfig) Lookup(name string) (ContractYAML, bool) {
	if c == nil {
		return ContractYAML{}, false
	}
	entry, ok := c.Contracts[name]
	return entry, ok
}
