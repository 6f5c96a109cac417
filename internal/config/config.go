package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the bridge configuration as read from the YAML file.
type Config struct {
	Homeserver struct {
		// Address is the base URL client-server API requests go to.
		Address string `yaml:"address"`
		// Domain is the server name appearing in user IDs.
		Domain string `yaml:"domain"`
	} `yaml:"homeserver"`

	Appservice struct {
		ID string `yaml:"id"`
		// Address is the URL the homeserver pushes transactions to.
		Address  string `yaml:"address"`
		Hostname string `yaml:"hostname"`
		Port     int    `yaml:"port"`

		BotUsername string `yaml:"bot_username"`
		ASToken     string `yaml:"as_token"`
		HSToken     string `yaml:"hs_token"`
	} `yaml:"appservice"`

	Bridge struct {
		// UsernameTemplate names the ghost users the bridge manages;
		// "{}" marks the variable part.
		UsernameTemplate string `yaml:"username_template"`
		// AliasTemplate names the room aliases the bridge manages.
		AliasTemplate string `yaml:"alias_template"`
	} `yaml:"bridge"`

	Database struct {
		Path string `yaml:"path"`
		// PickleKey seals account and session blobs at rest.
		PickleKey string `yaml:"pickle_key"`
	} `yaml:"database"`

	Logging struct {
		File  string `yaml:"file"`
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Placeholder values a freshly copied example config still carries.
const (
	placeholderDomain = "example.com"
	placeholderToken  = "This value is generated when generating the registration"
)

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate refuses configurations still carrying placeholder values or
// missing required fields.
func (c *Config) Validate() error {
	switch {
	case c.Homeserver.Address == "":
		return fmt.Errorf("config: homeserver.address is not set")
	case c.Homeserver.Domain == "" || c.Homeserver.Domain == placeholderDomain:
		return fmt.Errorf("config: homeserver.domain is not set")
	case c.Appservice.ID == "":
		return fmt.Errorf("config: appservice.id is not set")
	case c.Appservice.BotUsername == "":
		return fmt.Errorf("config: appservice.bot_username is not set")
	case c.Database.Path == "":
		return fmt.Errorf("config: database.path is not set")
	}
	return nil
}

// TokensGenerated reports whether the registration tokens have been
// filled in.
func (c *Config) TokensGenerated() bool {
	return c.Appservice.ASToken != "" && c.Appservice.ASToken != placeholderToken &&
		c.Appservice.HSToken != "" && c.Appservice.HSToken != placeholderToken
}

// Save writes the configuration back to path, preserving file mode 0600
// since it carries tokens.
func (c *Config) Save(path string) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}
