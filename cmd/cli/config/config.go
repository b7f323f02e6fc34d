package config

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultAPIURL = "http://localhost:8080"

const tokenFileName = ".urlhealth_token"

// APIURL returns the base URL of the scheduler control API.
// It can be overridden with the URLHEALTH_API_URL environment variable.
func APIURL() string {
	if v := os.Getenv("URLHEALTH_API_URL"); v != "" {
		return v
	}
	return defaultAPIURL
}

// SaveToken stores a JWT token in the user's home directory for
// subsequent CLI commands.
func SaveToken(token string) error {
	return os.WriteFile(tokenPath(), []byte(token), 0600)
}

// ReadToken loads the stored JWT token, if any.
func ReadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func tokenPath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, tokenFileName)
}
