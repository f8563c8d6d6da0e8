package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

var (
	// ErrInvalidFormat indicates an unsupported output format.
	ErrInvalidFormat = errors.New("invalid output format")

	// ErrInvalidWorkers indicates a negative worker count.
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrEmptyOut indicates a missing output directory.
	ErrEmptyOut = errors.New("empty output directory")

	// ErrInvalidDefine indicates a define that is not an identifier.
	ErrInvalidDefine = errors.New("invalid define")

	// ErrInvalidPattern indicates an include/exclude glob that does not compile.
	ErrInvalidPattern = errors.New("invalid pattern")
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Formats lists the supported output formats.
var Formats = []string{"mdx", "toon"}

// Validate checks the configuration, reporting every problem at once.
func Validate(cfg *Config) error {
	var errs []error

	cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
	if cfg.Format != "mdx" && cfg.Format != "toon" {
		errs = append(errs, fmt.Errorf("%w: must be one of %s, got %q", ErrInvalidFormat, strings.Join(Formats, ", "), cfg.Format))
	}

	if cfg.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: must be >= 0, got %d", ErrInvalidWorkers, cfg.Workers))
	}

	if strings.TrimSpace(cfg.Out) == "" {
		errs = append(errs, ErrEmptyOut)
	}

	for _, d := range cfg.Define {
		name, _, _ := strings.Cut(d, "=")
		if !identRe.MatchString(strings.TrimSpace(name)) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidDefine, d))
		}
	}

	for _, p := range append(append([]string{}, cfg.Include...), cfg.Exclude...) {
		if _, err := glob.Compile(p, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, p, err))
		}
	}

	return errors.Join(errs...)
}
