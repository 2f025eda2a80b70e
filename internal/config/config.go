// Package config resolves run configuration from the environment and loads
// credential files.
//
// Precedence is flags > environment > defaults; the CLI owns the flag
// layer, this package owns the rest. Credential files may be JSON or YAML;
// YAML is coerced to JSON so both formats go through one decoder.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	yaml "go.yaml.in/yaml/v3"
)

type Config struct {
	// DB is the contact directory database path.
	DB string `env:"MASSMSG_DB"`

	Workers     int           `env:"MASSMSG_WORKERS,default=1"`
	RatePerSec  int           `env:"MASSMSG_RATE"`
	SendTimeout time.Duration `env:"MASSMSG_SEND_TIMEOUT,default=10s"`

	LogLevel string `env:"MASSMSG_LOG_LEVEL,default=info"`
	LogFile  string `env:"MASSMSG_LOG_FILE"`
}

func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing env vars: %w", err)
	}
	return cfg, nil
}

// SenderEnv names the environment variable holding the path to the sender
// credentials file for a platform, e.g. MASSMSG_EMAIL_SENDER.
func SenderEnv(platform string) string {
	return strings.ToUpper("massmsg_" + platform + "_sender")
}

// LoadSenderFile reads a sender credentials file (JSON or YAML) into the
// generic shape the platform adapters consume.
func LoadSenderFile(path string) (any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sender file: %w", err)
	}
	return decodeData(path, b)
}

func decodeData(path string, data []byte) (any, error) {
	j, format, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(j, &v); err != nil {
		return nil, fmt.Errorf("%s decode: %w", format, err)
	}
	return v, nil
}

// coerceToJSONBytes converts YAML input to JSON bytes so both formats share
// the JSON decoder. Returns (jsonBytes, format, err) where format is "json"
// or "yaml".
func coerceToJSONBytes(path string, data []byte) ([]byte, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, "json", nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, "yaml", fmt.Errorf("yaml unmarshal: %w", err)
	}

	v = normalizeYAML(v)

	j, err := json.Marshal(v)
	if err != nil {
		return nil, "yaml", fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, "yaml", nil
}

// normalizeYAML ensures all map keys are strings so the result can be
// JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}
