package config

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

const (
	configDir     string = ".tdbg"
	configDirXdg  string = "tdbg"
	configFile    string = "config.yml"
	defaultPrompt string = "(tdbg) "
	defaultColor  int    = 33
)

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Commands aliases.
	Aliases map[string][]string `yaml:"aliases"`

	// Prompt printed before every command, "(tdbg) " if empty.
	Prompt string `yaml:"prompt,omitempty"`

	// HitColor is the ANSI foreground color used for breakpoint hit
	// notices (3/4 bit color codes as defined here:
	// https://en.wikipedia.org/wiki/ANSI_escape_code#Colors).
	HitColor int `yaml:"hit-color"`

	// KillOnExit decides whether the target is killed when the
	// debugger quits. Defaults to true.
	KillOnExit *bool `yaml:"kill-on-exit,omitempty"`
}

// GetPrompt returns the configured prompt or the default one.
func (c *Config) GetPrompt() string {
	if c == nil || c.Prompt == "" {
		return defaultPrompt
	}
	return c.Prompt
}

// GetHitColor returns the configured hit color, falling back to yellow
// when unset or outside of the ANSI foreground ranges.
func (c *Config) GetHitColor() int {
	if c == nil {
		return defaultColor
	}
	if (c.HitColor >= 30 && c.HitColor <= 37) || (c.HitColor >= 90 && c.HitColor <= 97) {
		return c.HitColor
	}
	return defaultColor
}

// ShouldKillOnExit reports whether the target should be killed on quit.
func (c *Config) ShouldKillOnExit() bool {
	if c == nil || c.KillOnExit == nil {
		return true
	}
	return *c.KillOnExit
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() *Config {
	err := createConfigPath()
	if err != nil {
		fmt.Printf("Could not create config directory: %v.\n", err)
		return &Config{}
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Printf("Unable to get config file path: %v.\n", err)
		return &Config{}
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			fmt.Printf("Error creating default config file: %v\n", err)
			return &Config{}
		}
	}
	defer func() {
		err := f.Close()
		if err != nil {
			fmt.Printf("Closing config file failed: %v.\n", err)
		}
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		fmt.Printf("Unable to read config data: %v.\n", err)
		return &Config{}
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		fmt.Printf("Unable to decode config file: %v.\n", err)
		return &Config{}
	}

	return &c
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(fullConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return f, nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for the tdbg debugger.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Uncomment the following line and set your preferred ANSI foreground color
# for breakpoint hit notices (if unset, default is 33, yellow).
# See https://en.wikipedia.org/wiki/ANSI_escape_code#3/4_bit
# hit-color: 33

# Prompt printed before every command.
# prompt: "(tdbg) "

# Set to false to leave the target running when the debugger quits.
# kill-on-exit: true

# Provided aliases will be added to the default aliases for a given command.
aliases:
  # command: ["alias1", "alias2"]
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
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, configDirXdg, file), nil
	}

	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return filepath.Join(userHomeDir, configDir, file), nil
}
