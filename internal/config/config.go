package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

const configFileEnvVar = "CONFIG_FILE"

type Config interface {
	EnvConfig
	CorsConfig
	SecurityConfig
	AuthConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetLogLevel() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Security
	Auth
	Store
}

// New returns the environment backed configuration. If CONFIG_FILE names a TOML
// file its values are used wherever the matching environment variable is unset.
func New() (Config, error) {
	values := fileValues{}
	if path := os.Getenv(configFileEnvVar); path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		values = loaded
	}
	return mainConfig{
		EnvVars:  EnvVars{file: values},
		Cors:     Cors{file: values},
		Security: Security{file: values},
		Auth:     Auth{file: values},
		Store:    Store{file: values},
	}, nil
}

// fileValues holds config file entries keyed by their environment variable name.
type fileValues map[string]string

func (f fileValues) get(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	if value, ok := f[envVar]; ok && value != "" {
		return value
	}
	return defaultValue
}

// LoadFile decodes a TOML file. Tables flatten into upper case keys joined with
// underscores, so [store] dsn = "..." is read as STORE_DSN.
func LoadFile(path string) (fileValues, error) {
	raw := map[string]any{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("decoding config file %s: %w", path, err)
	}
	values := fileValues{}
	flatten("", raw, values)
	return values, nil
}

func flatten(prefix string, raw map[string]any, out fileValues) {
	for k, v := range raw {
		key := strings.ToUpper(k)
		if prefix != "" {
			key = prefix + "_" + key
		}
		switch value := v.(type) {
		case map[string]any:
			flatten(key, value, out)
		case []any:
			parts := make([]string, 0, len(value))
			for _, p := range value {
				parts = append(parts, fmt.Sprint(p))
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprint(value)
		}
	}
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
