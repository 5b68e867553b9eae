// Package config loads deploy targets from viper.
package config

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/jayteealao/distpush/internal/errors"
	"github.com/spf13/viper"
)

// DefaultPort is used when a target does not set a port.
const DefaultPort = 22

// DeployConfig describes one deployment target. It is immutable for the
// duration of a run.
type DeployConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	ProjectName string `mapstructure:"projectName" yaml:"projectName,omitempty"`
	Script      string `mapstructure:"script" yaml:"script"`
	DistPath    string `mapstructure:"distPath" yaml:"distPath"`
	WebDir      string `mapstructure:"webDir" yaml:"webDir"`
	Host        string `mapstructure:"host" yaml:"host"`
	Port        int    `mapstructure:"port" yaml:"port"`
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"password,omitempty"`
	PrivateKey  string `mapstructure:"privateKey" yaml:"privateKey,omitempty"`
	Passphrase  string `mapstructure:"passphrase" yaml:"passphrase,omitempty"`
	KnownHosts  string `mapstructure:"knownHosts" yaml:"knownHosts,omitempty"`
}

// DisplayName returns the name shown in console output and history.
// The original tool accepted either "name" or "projectName".
func (c DeployConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.ProjectName != "" {
		return c.ProjectName
	}
	return c.Host
}

// Address returns host:port for dialing.
func (c DeployConfig) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// merge overlays non-zero fields of o onto c.
func (c DeployConfig) merge(o DeployConfig) DeployConfig {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Name, o.Name)
	set(&c.ProjectName, o.ProjectName)
	set(&c.Script, o.Script)
	set(&c.DistPath, o.DistPath)
	set(&c.WebDir, o.WebDir)
	set(&c.Host, o.Host)
	set(&c.Username, o.Username)
	set(&c.Password, o.Password)
	set(&c.PrivateKey, o.PrivateKey)
	set(&c.Passphrase, o.Passphrase)
	set(&c.KnownHosts, o.KnownHosts)
	if o.Port != 0 {
		c.Port = o.Port
	}
	return c
}

// WebhookConfig configures the generic webhook notifier.
type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

// SlackConfig configures the Slack notifier.
type SlackConfig struct {
	WebhookURL string `mapstructure:"webhookURL"`
	Channel    string `mapstructure:"channel"`
	Username   string `mapstructure:"username"`
}

// NotifyConfig holds the optional notification backends.
type NotifyConfig struct {
	Webhook WebhookConfig `mapstructure:"webhook"`
	Slack   SlackConfig   `mapstructure:"slack"`
}

// File is the full shape of distpush.yaml.
type File struct {
	DeployConfig `mapstructure:",squash"`
	Environments map[string]DeployConfig `mapstructure:"environments"`
	Notify       NotifyConfig            `mapstructure:"notify"`
}

// Keys are the top-level target keys. They can also be set through the
// environment, e.g. DISTPUSH_HOST or DISTPUSH_WEBDIR.
var Keys = []string{
	"name", "projectName", "script", "distPath", "webDir", "host", "port",
	"username", "password", "privateKey", "passphrase", "knownHosts",
}

// BindEnv makes v read every target key from the environment. Unmarshal
// only sees environment values for keys that were bound explicitly.
func BindEnv(v *viper.Viper) error {
	for _, key := range Keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// Load decodes the config held by v.
func Load(v *viper.Viper) (*File, error) {
	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidConfig, err)
	}
	return &f, nil
}

// Target resolves the deploy target for env. An empty env selects the
// top-level target; otherwise the named environment is overlaid on the
// top-level fields so shared settings need only be written once.
func (f *File) Target(env string) (DeployConfig, error) {
	cfg := f.DeployConfig
	if env != "" {
		envCfg, ok := f.lookupEnvironment(env)
		if !ok {
			return DeployConfig{}, fmt.Errorf("%w: %q", apperrors.ErrEnvironmentNotFound, env)
		}
		cfg = cfg.merge(envCfg)
		if cfg.Name == "" && cfg.ProjectName == "" {
			cfg.Name = env
		}
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	return cfg, nil
}

// EnvironmentNames returns the environments defined in the file.
func (f *File) EnvironmentNames() []string {
	names := make([]string, 0, len(f.Environments))
	for name := range f.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// viper lowercases map keys, so environment lookup is case-insensitive.
func (f *File) lookupEnvironment(env string) (DeployConfig, bool) {
	if c, found := f.Environments[env]; found {
		return c, true
	}
	c, found := f.Environments[strings.ToLower(env)]
	return c, found
}

// Override applies command-line overrides on top of a resolved target.
func Override(cfg DeployConfig, o DeployConfig) DeployConfig {
	return cfg.merge(o)
}
