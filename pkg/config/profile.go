package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
)

// Load decodes the YAML file at filePath into out after expanding ${VAR}
// and ${VAR:-fallback} references from the environment.
func Load(filePath string, out interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: profile path comes from the operator
	if err != nil {
		return bencherrors.Wrap(err, bencherrors.ErrorTypeConfig, "read profile").
			WithDetail("path", filePath)
	}

	content := substituteEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(content), out); err != nil {
		return bencherrors.Wrap(err, bencherrors.ErrorTypeConfig, "parse profile").
			WithDetail("path", filePath)
	}
	return nil
}

// LoadProfile reads a profile file on top of Default, so keys the file
// omits keep their default values.
func LoadProfile(filePath string) (Config, error) {
	cfg := Default()
	if err := Load(filePath, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(filePath string, cfg interface{}) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return bencherrors.Wrap(err, bencherrors.ErrorTypeConfig, "encode profile")
	}
	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return bencherrors.Wrap(err, bencherrors.ErrorTypeConfig, "write profile").
			WithDetail("path", filePath)
	}
	return nil
}

// substituteEnvVars replaces ${NAME} with the value of NAME and
// ${NAME:-fallback} with fallback when NAME is unset or empty. An
// unterminated reference is left as is.
func substituteEnvVars(content string) string {
	var b strings.Builder
	b.Grow(len(content))
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.IndexByte(content[start:], '}')
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		name, fallback, hasFallback := strings.Cut(content[start+2:end], ":-")
		value := os.Getenv(name)
		if value == "" && hasFallback {
			value = fallback
		}
		b.WriteString(value)
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
