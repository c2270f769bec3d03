package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ManifestFileName is the project manifest read from the working directory.
const ManifestFileName = "pindeps.toml"

var validIdentRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Config struct {
	// Descriptor is the file whose first statement declares the dependencies.
	Descriptor string `toml:"descriptor" mapstructure:"descriptor"`
	// Variable is the name that statement binds.
	Variable string `toml:"variable" mapstructure:"variable"`
	// Command is the installer program plus any leading arguments.
	// "install <spec> --no-build-isolation" is appended per dependency.
	Command []string `toml:"command" mapstructure:"command"`
	// ExtraArgs are appended after the isolation flag.
	ExtraArgs []string `toml:"extra_args,omitempty" mapstructure:"extra_args"`
	// Env holds KEY=VALUE entries added to the installer's environment.
	Env []string `toml:"env,omitempty" mapstructure:"env"`
	// MaxEvalSteps bounds evaluation of the descriptor statement.
	MaxEvalSteps uint64 `toml:"max_eval_steps" mapstructure:"max_eval_steps"`

	Test TestConfig `toml:"test" mapstructure:"test"`
}

// TestConfig selects which files the collect command reports.
type TestConfig struct {
	Prefix    string `toml:"prefix" mapstructure:"prefix"`
	Extension string `toml:"extension" mapstructure:"extension"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Descriptor:   "setup.py",
		Variable:     "dependencies",
		Command:      []string{"pip"},
		MaxEvalSteps: 100_000,
		Test: TestConfig{
			Prefix:    "test_",
			Extension: ".hy",
		},
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Descriptor == "" {
		errs = append(errs, errors.New("descriptor must not be empty"))
	}
	if !validIdentRegex.MatchString(c.Variable) {
		errs = append(errs, fmt.Errorf("variable %q is not a valid identifier", c.Variable))
	}
	if len(c.Command) == 0 || c.Command[0] == "" {
		errs = append(errs, errors.New("command must name an installer program"))
	}
	for _, kv := range c.Env {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			errs = append(errs, fmt.Errorf("env entry %q is not KEY=VALUE", kv))
		}
	}
	return errors.Join(errs...)
}

func UnmarshalConfig(data []byte) (*Config, error) {
	cfg := Default()
	err := toml.Unmarshal(data, cfg)

	return cfg, err
}

func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return UnmarshalConfig(data)
}

func SaveFile(path string, cfg *Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Init validates cfg and writes it as the manifest in dir. Nothing is
// written if the manifest already exists or cfg is invalid.
func Init(dir string, cfg *Config) (string, error) {
	path := filepath.Join(dir, ManifestFileName)

	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", ManifestFileName)
	}

	if err := cfg.Validate(); err != nil {
		return "", err
	}

	if err := SaveFile(path, cfg); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}

	return path, nil
}
