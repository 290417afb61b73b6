package common

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

type SeedAccount struct {
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
	Balance string `yaml:"balance"`
}

type SeedConfig struct {
	Accounts []SeedAccount `yaml:"accounts"`
}

// LoadSeedAccounts reads the account seed file used by cmd/setup.
func LoadSeedAccounts(seedFile string) ([]SeedAccount, error) {
	var seedPath string
	if filepath.IsAbs(seedFile) {
		seedPath = seedFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		seedPath = filepath.Join(wd, seedFile)
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", seedFile, err)
	}

	var config SeedConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", seedFile, err)
	}

	for i, account := range config.Accounts {
		if account.Name == "" {
			return nil, fmt.Errorf("account at index %d missing name", i)
		}
		if account.Email == "" {
			return nil, fmt.Errorf("account at index %d missing email", i)
		}
	}

	return config.Accounts, nil
}
