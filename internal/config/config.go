package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/teemow/inboxfleet/internal/logging"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "INBOXFLEET_"

// DefaultFile is read when it exists and no file is given explicitly.
const DefaultFile = "inboxfleet.yaml"

// Config keys.
const (
	KeyStoreDir        = "store.dir"
	KeyCredentialsDir  = "credentials.dir"
	KeyCredentialsFile = "credentials.file"
	KeyAuthTimeout     = "auth.timeout"
	KeyAuthBrowser     = "auth.browser"
	KeyPasswordLength  = "password.length"
	KeyPasswordCopy    = "password.clipboard"
	KeySendParallel    = "send.parallel"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
)

// Config holds all settings.
type Config struct {
	Store       StoreConfig       `koanf:"store"`
	Credentials CredentialsConfig `koanf:"credentials"`
	Auth        AuthConfig        `koanf:"auth"`
	Password    PasswordConfig    `koanf:"password"`
	Send        SendConfig        `koanf:"send"`
	Log         LogConfig         `koanf:"log"`
}

// StoreConfig locates the registry and token files.
type StoreConfig struct {
	Dir string `koanf:"dir"`
}

// CredentialsConfig locates the OAuth client file.
type CredentialsConfig struct {
	Dir  string `koanf:"dir"`
	File string `koanf:"file"`
}

// AuthConfig controls the browser authorization flow.
type AuthConfig struct {
	Timeout time.Duration `koanf:"timeout"`
	Browser bool          `koanf:"browser"`
}

// PasswordConfig controls generated passwords.
type PasswordConfig struct {
	Length int `koanf:"length"`
	// Clipboard copies generated passwords to the system clipboard.
	Clipboard bool `koanf:"clipboard"`
}

// SendConfig controls bulk test sends.
type SendConfig struct {
	Parallel int `koanf:"parallel"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Defaults returns the built-in settings.
func Defaults() map[string]any {
	return map[string]any{
		KeyStoreDir:        ".tokens",
		KeyCredentialsDir:  ".",
		KeyCredentialsFile: "",
		KeyAuthTimeout:     "3m",
		KeyAuthBrowser:     true,
		KeyPasswordLength:  16,
		KeyPasswordCopy:    true,
		KeySendParallel:    1,
		KeyLogLevel:        "info",
		KeyLogFormat:       logging.FormatText,
	}
}

// Options select the sources Load reads.
type Options struct {
	// File is the YAML file to read. When empty, DefaultFile is read if it
	// exists.
	File string
	// Overrides are applied last, typically flags the user set explicitly.
	// Keys are dotted config keys.
	Overrides map[string]any
}

// Load merges defaults, the YAML file, the environment and overrides.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	path := opts.File
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// INBOXFLEET_AUTH_TIMEOUT -> auth.timeout
	envTransformer := func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "_", ".")
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformer), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	if len(opts.Overrides) > 0 {
		if err := k.Load(mapProvider(opts.Overrides), nil); err != nil {
			return nil, fmt.Errorf("load overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Store.Dir == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeyStoreDir))
	}
	if c.Auth.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", KeyAuthTimeout, c.Auth.Timeout))
	}
	if c.Password.Length <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeyPasswordLength, c.Password.Length))
	}
	if c.Send.Parallel <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", KeySendParallel, c.Send.Parallel))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyLogLevel, err))
	}
	if c.Log.Format != logging.FormatText && c.Log.Format != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q", KeyLogFormat, logging.FormatText, logging.FormatJSON, c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
