package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".vsattach"
	configFile string = "config.yml"
)

const (
	DefaultHostName         = "devenv"
	DefaultMonikerPrefix    = "!VisualStudio.DTE."
	DefaultAttachRetries    = 10
	DefaultAttachRetryDelay = 250 * time.Millisecond
	DefaultMaxAncestorDepth = 64
)

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// HostNames are the process names (without extension) of debugger
	// hosts, matched case-insensitively while walking the process ancestry.
	HostNames []string `yaml:"host-names"`

	// MonikerPrefix is the prefix of the display name under which a host
	// publishes its automation object in the running object table.
	MonikerPrefix string `yaml:"moniker-prefix"`

	// AttachRetries is the number of times navigation of the host's
	// automation object is attempted when the host is busy.
	AttachRetries int `yaml:"attach-retries"`
	// AttachRetryDelay is the pause between two attempts.
	AttachRetryDelay time.Duration `yaml:"attach-retry-delay"`

	// MaxAncestorDepth bounds the ancestry walk.
	MaxAncestorDepth int `yaml:"max-ancestor-depth"`
}

// Defaults fills every unset option with its default value and returns c.
func (c *Config) Defaults() *Config {
	if len(c.HostNames) == 0 {
		c.HostNames = []string{DefaultHostName}
	}
	if c.MonikerPrefix == "" {
		c.MonikerPrefix = DefaultMonikerPrefix
	}
	if c.AttachRetries <= 0 {
		c.AttachRetries = DefaultAttachRetries
	}
	if c.AttachRetryDelay <= 0 {
		c.AttachRetryDelay = DefaultAttachRetryDelay
	}
	if c.MaxAncestorDepth <= 0 {
		c.MaxAncestorDepth = DefaultMaxAncestorDepth
	}
	return c
}

// LoadConfig attempts to populate a Config object from the config.yml file
// in the user's configuration directory, creating a default one if it does
// not exist. Problems are reported on standard error and the defaults are
// returned.
func LoadConfig() *Config {
	err := createConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not create config directory: %v.\n", err)
		return (&Config{}).Defaults()
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to get config file path: %v.\n", err)
		return (&Config{}).Defaults()
	}
	if _, err := os.Stat(fullConfigFile); os.IsNotExist(err) {
		if err := createDefaultConfig(fullConfigFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating default config file: %v\n", err)
			return (&Config{}).Defaults()
		}
	}
	c, err := LoadConfigFrom(fullConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v.\n", err)
		return (&Config{}).Defaults()
	}
	return c
}

// LoadConfigFrom reads the configuration file at path.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config data: %v", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unable to decode config file: %v", err)
	}
	return c.Defaults(), nil
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	if err := createConfigPath(); err != nil {
		return err
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}
	return SaveConfigTo(fullConfigFile, conf)
}

// SaveConfigTo writes conf to the configuration file at path.
func SaveConfigTo(path string, conf *Config) error {
	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	return ioutil.WriteFile(path, out, 0600)
}

func createDefaultConfig(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create config file: %v", err)
	}
	defer f.Close()
	if err := writeDefaultConfig(f); err != nil {
		return fmt.Errorf("unable to write default configuration: %v", err)
	}
	return nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for vsattach.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Process names of debugger hosts looked for among the ancestors of a process.
# host-names: ["devenv"]

# Display name prefix of the automation objects published by debugger hosts
# in the running object table.
# moniker-prefix: "!VisualStudio.DTE."

# Number of attempts made while the debugger host is busy, and the pause
# between two attempts.
# attach-retries: 10
# attach-retry-delay: 250ms

# Maximum number of ancestors visited looking for a debugger host.
# max-ancestor-depth: 64
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return filepath.Join(userHomeDir, configDir, file), nil
}
