// Package webhook implements the mutation engine: a mutating admission
// webhook that injects profiler bootstrap material into matching pods.
package webhook

import (
	"fmt"
	"strings"

	"github.com/periscope-mesh/periscope/internal/config"
	"github.com/periscope-mesh/periscope/internal/constants"
)

// Config is the webhook's layered configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Match  MatchConfig  `yaml:"match"`
	Inject InjectConfig `yaml:"inject"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig controls the HTTPS listener.
type ServerConfig struct {
	Host     string `yaml:"host" env:"PERISCOPE_WEBHOOK_HOST"`
	Port     int    `yaml:"port" env:"PERISCOPE_WEBHOOK_PORT"`
	CertFile string `yaml:"cert_file" env:"PERISCOPE_WEBHOOK_TLS_CERT"`
	KeyFile  string `yaml:"key_file" env:"PERISCOPE_WEBHOOK_TLS_KEY"`
	Metrics  bool   `yaml:"metrics" env:"PERISCOPE_WEBHOOK_METRICS"`
}

// MatchConfig decides which pods get mutated: the namespace must equal
// Namespace and the pod must carry at least one of Labels (key=value form).
type MatchConfig struct {
	Namespace string   `yaml:"namespace" env:"PERISCOPE_TARGET_NAMESPACE"`
	Labels    []string `yaml:"labels" env:"PERISCOPE_TARGET_LABELS"`
}

// InjectConfig describes what a matching pod receives.
type InjectConfig struct {
	// EnvName/EnvValue is the bootstrap variable upserted into every
	// container (python-path-style: it points the workload runtime at the
	// injected bootstrap material).
	EnvName  string `yaml:"env_name" env:"PERISCOPE_INJECT_ENV_NAME"`
	EnvValue string `yaml:"env_value" env:"PERISCOPE_INJECT_ENV_VALUE"`

	// VolumeName/ConfigMapName back the injected read-only volume.
	VolumeName    string `yaml:"volume_name" env:"PERISCOPE_INJECT_VOLUME"`
	ConfigMapName string `yaml:"configmap_name" env:"PERISCOPE_INJECT_CONFIGMAP"`

	// Files are mounted from the volume into every container via subPath.
	Files []FileMount `yaml:"files"`
}

// FileMount maps one configmap key to its mount path inside containers.
type FileMount struct {
	Key       string `yaml:"key"`
	MountPath string `yaml:"mount_path"`
}

// LogConfig controls webhook logging.
type LogConfig struct {
	Level  string `yaml:"level" env:"PERISCOPE_WEBHOOK_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"PERISCOPE_WEBHOOK_LOG_PRETTY"`
}

// DefaultConfig returns webhook defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     constants.DefaultWebhookPort,
			CertFile: constants.DefaultTLSCertFile,
			KeyFile:  constants.DefaultTLSKeyFile,
			Metrics:  true,
		},
		Inject: InjectConfig{
			EnvName:       "PERISCOPE_CONFIG",
			EnvValue:      constants.DefaultConfigPath,
			VolumeName:    constants.DefaultInjectVolumeName,
			ConfigMapName: constants.DefaultInjectConfigMapName,
			Files: []FileMount{
				{Key: "profiler.yaml", MountPath: constants.DefaultConfigPath},
			},
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig resolves the webhook configuration through defaults, the YAML
// document at path and environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := config.Load(cfg, path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects structurally broken configuration. A webhook with no
// match rules is valid: it answers every request without ever mutating.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if _, err := ParseLabelPairs(c.Match.Labels); err != nil {
		return err
	}
	for _, f := range c.Inject.Files {
		if f.Key == "" || f.MountPath == "" {
			return fmt.Errorf("inject file needs both key and mount_path, got %+v", f)
		}
	}
	return nil
}

// LabelPair is one key=value match rule.
type LabelPair struct {
	Key   string
	Value string
}

// ParseLabelPairs parses key=value selectors.
func ParseLabelPairs(selectors []string) ([]LabelPair, error) {
	pairs := make([]LabelPair, 0, len(selectors))
	for _, s := range selectors {
		key, value, ok := strings.Cut(s, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid label selector %q, want key=value", s)
		}
		pairs = append(pairs, LabelPair{Key: key, Value: value})
	}
	return pairs, nil
}
