// Copyright (c) 2025 BVK Chaitanya

// Package setup implements subcommands that write service credentials into
// the secrets file.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bvk/buybot/server"
)

// resolveDataDir creates the data directory when necessary and returns its
// absolute path along with the secrets file path.
func resolveDataDir(dataDir string) (string, string, error) {
	if len(dataDir) == 0 {
		dataDir = filepath.Join(os.Getenv("HOME"), ".buybot")
	}
	if _, err := os.Stat(dataDir); err != nil {
		if !os.IsNotExist(err) {
			return "", "", fmt.Errorf("could not stat data directory %q: %w", dataDir, err)
		}
		if err := os.MkdirAll(dataDir, 0700); err != nil {
			return "", "", fmt.Errorf("could not create data directory %q: %w", dataDir, err)
		}
	}
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return "", "", fmt.Errorf("could not determine data-dir %q absolute path: %w", dataDir, err)
	}
	return abs, filepath.Join(abs, "secrets.json"), nil
}

// loadSecrets reads the secrets file; a missing file returns empty secrets.
func loadSecrets(secretsPath string) (*server.Secrets, error) {
	secrets, err := server.SecretsFromFile(secretsPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		secrets = new(server.Secrets)
	}
	return secrets, nil
}

func saveSecrets(secretsPath string, secrets *server.Secrets) error {
	js, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(secretsPath, js, os.FileMode(0600)); err != nil {
		return err
	}
	return nil
}
