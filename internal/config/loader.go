package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the root directory.
const FileName = ".headerdoc"

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"define":        "define",
	"show-internal": "show_internal",
	"show-excluded": "show_excluded",
	"out":           "out",
	"format":        "format",
	"project":       "project",
	"include":       "include",
	"exclude":       "exclude",
	"workers":       "workers",
	"max-file-size": "max_file_size",
}

// Loader reads configuration for one root directory.
type Loader struct {
	rootDir string
	file    string
	flags   *pflag.FlagSet
}

// NewLoader creates a loader for rootDir. An explicit file replaces the
// .headerdoc.yaml lookup. Flags, when given, override everything else.
func NewLoader(rootDir, file string, flags *pflag.FlagSet) *Loader {
	return &Loader{rootDir: rootDir, file: file, flags: flags}
}

// Load resolves the configuration. Priority, highest first: flags set on
// the command line, HEADERDOC_* environment, config file, defaults.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()

	if l.file != "" {
		v.SetConfigFile(l.file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(l.rootDir)
	}

	v.SetEnvPrefix("HEADERDOC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if l.flags != nil {
		for name, key := range flagKeys {
			if f := l.flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("define", d.Define)
	v.SetDefault("show_internal", d.ShowInternal)
	v.SetDefault("show_excluded", d.ShowExcluded)
	v.SetDefault("out", d.Out)
	v.SetDefault("format", d.Format)
	v.SetDefault("project", d.Project)
	v.SetDefault("include", d.Include)
	v.SetDefault("exclude", d.Exclude)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("max_file_size", d.MaxFileSize)
}
