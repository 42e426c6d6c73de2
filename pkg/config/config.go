// Package config loads the protectclip service configuration from a YAML
// file. Every field has a sensible default so an empty or missing file
// yields a runnable configuration; secrets stay out of the file and come
// from the environment via pkg/credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	// ListenAddr is the webhook server bind address.
	ListenAddr string `yaml:"listen_addr"`

	// WebhookSecret, when set, must match the X-Webhook-Secret header of
	// incoming webhook requests.
	WebhookSecret string `yaml:"webhook_secret"`

	// EnvFile is an optional dotenv file loaded for UNIFI_* credentials.
	EnvFile string `yaml:"env_file"`

	// OutputDir is where retrieved clips are written.
	OutputDir string `yaml:"output_dir"`

	Controller Controller `yaml:"controller"`
	Retrieval  Retrieval  `yaml:"retrieval"`
}

// Controller describes the UniFi Protect console to drive.
type Controller struct {
	// Hostname overrides the hostname from the credential source when
	// set. Useful when credentials are shared across controllers.
	Hostname string `yaml:"hostname"`

	// Headless controls the browser mode. Disable only for debugging.
	Headless bool `yaml:"headless"`
}

// Retrieval bounds the retrieval pipeline.
type Retrieval struct {
	LaunchTimeout Duration `yaml:"launch_timeout"`
	LoginTimeout  Duration `yaml:"login_timeout"`
	LocateTimeout Duration `yaml:"locate_timeout"`
	MaxConcurrent int64    `yaml:"max_concurrent"`
}

// Duration is a time.Duration that unmarshals from YAML strings like "45s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		ListenAddr: ":8080",
		OutputDir:  "clips",
		Controller: Controller{
			Headless: true,
		},
		Retrieval: Retrieval{
			LaunchTimeout: Duration(30 * time.Second),
			LoginTimeout:  Duration(45 * time.Second),
			LocateTimeout: Duration(60 * time.Second),
			MaxConcurrent: 2,
		},
	}
}

// Load reads the configuration file at path, layering it over defaults.
// A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults restores defaults for fields the file zeroed out.
func (c *Config) applyDefaults() {
	def := Default()
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
	if c.Retrieval.LaunchTimeout <= 0 {
		c.Retrieval.LaunchTimeout = def.Retrieval.LaunchTimeout
	}
	if c.Retrieval.LoginTimeout <= 0 {
		c.Retrieval.LoginTimeout = def.Retrieval.LoginTimeout
	}
	if c.Retrieval.LocateTimeout <= 0 {
		c.Retrieval.LocateTimeout = def.Retrieval.LocateTimeout
	}
	if c.Retrieval.MaxConcurrent <= 0 {
		c.Retrieval.MaxConcurrent = def.Retrieval.MaxConcurrent
	}
}
