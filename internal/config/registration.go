package config

import (
	"crypto/rand"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registration is the appservice registration YAML handed to the
// homeserver admin.
type Registration struct {
	ID              string     `yaml:"id"`
	URL             string     `yaml:"url"`
	ASToken         string     `yaml:"as_token"`
	HSToken         string     `yaml:"hs_token"`
	SenderLocalpart string     `yaml:"sender_localpart"`
	RateLimited     bool       `yaml:"rate_limited"`
	Namespaces      Namespaces `yaml:"namespaces"`
}

// Namespaces declares which user IDs and aliases the appservice owns.
type Namespaces struct {
	Users   []Namespace `yaml:"users,omitempty"`
	Aliases []Namespace `yaml:"aliases,omitempty"`
}

// Namespace is one exclusive or shared regex claim.
type Namespace struct {
	Regex     string `yaml:"regex"`
	Exclusive bool   `yaml:"exclusive"`
}

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// newToken mints a 64-character random token from lowercase letters and
// digits.
func newToken() string {
	var raw [64]byte
	if _, err := rand.Read(raw[:]); err != nil {
		panic(fmt.Sprintf("config: reading randomness: %v", err))
	}
	var sb strings.Builder
	for _, b := range raw {
		sb.WriteByte(tokenAlphabet[int(b)%len(tokenAlphabet)])
	}
	return sb.String()
}

// templateRegex turns a username or alias template like "bridge_{}" into
// an anchored ID regex for the configured domain.
func templateRegex(sigil, template, domain string) string {
	escaped := regexp.QuoteMeta(template)
	pattern := strings.Replace(escaped, regexp.QuoteMeta("{}"), "[a-z0-9._=/-]+", 1)
	return fmt.Sprintf("^%s%s:%s$", regexp.QuoteMeta(sigil), pattern, regexp.QuoteMeta(domain))
}

// UserNamespaceRegex returns the anchored regex claiming the bridge's
// ghost users, or "" when no template is configured.
func (c *Config) UserNamespaceRegex() string {
	if c.Bridge.UsernameTemplate == "" {
		return ""
	}
	return templateRegex("@", c.Bridge.UsernameTemplate, c.Homeserver.Domain)
}

// AliasNamespaceRegex returns the anchored regex claiming the bridge's
// room aliases, or "" when no template is configured.
func (c *Config) AliasNamespaceRegex() string {
	if c.Bridge.AliasTemplate == "" {
		return ""
	}
	return templateRegex("#", c.Bridge.AliasTemplate, c.Homeserver.Domain)
}

// GenerateRegistration mints fresh tokens into cfg and builds the
// matching registration.
func GenerateRegistration(cfg *Config) *Registration {
	cfg.Appservice.ASToken = newToken()
	cfg.Appservice.HSToken = newToken()

	reg := &Registration{
		ID:              cfg.Appservice.ID,
		URL:             cfg.Appservice.Address,
		ASToken:         cfg.Appservice.ASToken,
		HSToken:         cfg.Appservice.HSToken,
		SenderLocalpart: cfg.Appservice.BotUsername,
		RateLimited:     false,
	}
	if re := cfg.UserNamespaceRegex(); re != "" {
		reg.Namespaces.Users = append(reg.Namespaces.Users, Namespace{Regex: re, Exclusive: true})
	}
	if re := cfg.AliasNamespaceRegex(); re != "" {
		reg.Namespaces.Aliases = append(reg.Namespaces.Aliases, Namespace{Regex: re, Exclusive: true})
	}
	return reg
}

// Save writes the registration YAML to path.
func (r *Registration) Save(path string) error {
	raw, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

// LoadRegistration reads a registration YAML from path.
func LoadRegistration(path string) (*Registration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg Registration
	if err := yaml.Unmarshal(raw, &reg); err != nil {
		return nil, fmt.Errorf("config: parsing registration %s: %w", path, err)
	}
	return &reg, nil
}
