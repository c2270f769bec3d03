package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. PINDEPS_DESCRIPTOR.
// List settings read from the environment are split into words the way a
// shell would, so PINDEPS_COMMAND="python -m pip" is three arguments.
const EnvPrefix = "PINDEPS"

// shellWords decodes a string into a []string field by shell word splitting.
var shellWords mapstructure.DecodeHookFuncType = func(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf([]string(nil)) {
		return data, nil
	}
	words, err := shellquote.Split(data.(string))
	if err != nil {
		return nil, fmt.Errorf("splitting %q: %w", data, err)
	}
	return words, nil
}

// Overrides holds values set on the command line. Empty fields are unset.
type Overrides struct {
	Descriptor string
	Variable   string
	Command    []string
}

// Load resolves configuration using Viper's merge semantics:
// flags > PINDEPS_* env > project manifest > ~/.pindeps/config.toml > defaults.
// manifestPath names the project manifest; when empty, pindeps.toml in the
// working directory is used if present. An explicit manifestPath must exist.
func Load(manifestPath string, overrides Overrides) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("determining home directory: %w", err)
	}
	globalPath := filepath.Join(home, ".pindeps", "config.toml")

	explicit := manifestPath != ""
	if !explicit {
		manifestPath = ManifestFileName
	}
	return load(overrides, globalPath, manifestPath, explicit)
}

// load is the internal implementation that accepts explicit paths,
// making it testable without touching the real home directory.
func load(overrides Overrides, globalPath, localPath string, requireLocal bool) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	def := Default()
	v.SetDefault("descriptor", def.Descriptor)
	v.SetDefault("variable", def.Variable)
	v.SetDefault("command", def.Command)
	v.SetDefault("extra_args", def.ExtraArgs)
	v.SetDefault("env", def.Env)
	v.SetDefault("max_eval_steps", def.MaxEvalSteps)
	v.SetDefault("test.prefix", def.Test.Prefix)
	v.SetDefault("test.extension", def.Test.Extension)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Lowest priority: global config
	if _, err := os.Stat(globalPath); err == nil {
		v.SetConfigFile(globalPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", globalPath, err)
		}
	}

	// Higher priority: project manifest
	if _, err := os.Stat(localPath); err == nil {
		v.SetConfigFile(localPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", localPath, err)
		}
	} else if requireLocal {
		return nil, fmt.Errorf("reading %s: %w", localPath, err)
	}

	// Highest priority: CLI flags
	if overrides.Descriptor != "" {
		v.Set("descriptor", overrides.Descriptor)
	}
	if overrides.Variable != "" {
		v.Set("variable", overrides.Variable)
	}
	if len(overrides.Command) > 0 {
		v.Set("command", overrides.Command)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(shellWords)); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
