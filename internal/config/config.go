// Package config loads the two YAML configuration documents (orchestrator
// and per-platform table configuration) and the environment variables that
// carry secrets and locators.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment holds the secrets and locators read from the process
// environment (or a .env file loaded by the CLI entry point).
type Environment struct {
	WarehouseHost     string
	WarehousePort     int
	WarehouseDatabase string
	WarehouseUser     string
	WarehousePassword string

	TestMode bool
	DryRun   bool

	// Platforms holds per-platform client credentials keyed by platform
	// name, e.g. "linkedin" -> {client_id, client_secret, refresh_token}.
	Platforms map[string]PlatformCredentials
}

// PlatformCredentials is the credential set a token provider needs to mint
// or refresh a token for one platform.
type PlatformCredentials struct {
	ClientID      string
	ClientSecret  string
	RefreshToken  string
	DeveloperToken string
	AccountID     string
}

// LoadEnvironment reads warehouse and platform credentials from the
// process environment. dotenvPath, if non-empty, is loaded first (missing
// file is not an error, matching godotenv.Load's normal use in a CLI
// entry point where a .env file is optional in production).
func LoadEnvironment(dotenvPath string, platforms []string) (*Environment, error) {
	if dotenvPath != "" {
		_ = godotenv.Load(dotenvPath)
	}

	port, err := envInt("WAREHOUSE_PORT", 1433)
	if err != nil {
		return nil, err
	}

	env := &Environment{
		WarehouseHost:     os.Getenv("WAREHOUSE_HOST"),
		WarehousePort:     port,
		WarehouseDatabase: os.Getenv("WAREHOUSE_DATABASE"),
		WarehouseUser:     os.Getenv("WAREHOUSE_USER"),
		WarehousePassword: os.Getenv("WAREHOUSE_PASSWORD"),
		TestMode:          envBool("TEST_MODE"),
		DryRun:            envBool("DRY_RUN"),
		Platforms:         map[string]PlatformCredentials{},
	}

	if env.WarehouseHost == "" {
		return nil, &missingEnvError{"WAREHOUSE_HOST"}
	}

	for _, p := range platforms {
		prefix := upperPlatform(p)
		env.Platforms[p] = PlatformCredentials{
			ClientID:       os.Getenv(prefix + "_CLIENT_ID"),
			ClientSecret:   os.Getenv(prefix + "_CLIENT_SECRET"),
			RefreshToken:   os.Getenv(prefix + "_REFRESH_TOKEN"),
			DeveloperToken: os.Getenv(prefix + "_DEVELOPER_TOKEN"),
			AccountID:      os.Getenv(prefix + "_ACCOUNT_ID"),
		}
	}
	return env, nil
}

type missingEnvError struct{ name string }

func (e *missingEnvError) Error() string {
	return fmt.Sprintf("missing required environment variable %s", e.name)
}

func envInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("env %s: %w", name, err)
	}
	return n, nil
}

func envBool(name string) bool {
	v := os.Getenv(name)
	b, _ := strconv.ParseBool(v)
	return b
}

func upperPlatform(p string) string {
	out := make([]byte, len(p))
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
