package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/lox/charlie/internal/client"
	"github.com/lox/charlie/internal/session"
)

// EnvPrefix prefixes every environment override, e.g. CHARLIE_SERVER
const EnvPrefix = "charlie"

// Config represents the complete client configuration
type Config struct {
	Server ServerSettings
	Player PlayerSettings
	UI     UISettings
}

// ServerSettings describes how to reach the house. Durations are in seconds.
type ServerSettings struct {
	URL               string
	ConnectTimeout    int
	RequestTimeout    int
	KeepaliveInterval int
	ReconnectAttempts int
	ReconnectDelay    int
}

// PlayerSettings contains player-specific settings
type PlayerSettings struct {
	Name       string
	DefaultBet int
	// Address is announced to the house at login
	Address string
}

// UISettings contains user interface settings
type UISettings struct {
	LogLevel string
	LogFile  string
	Color    bool
}

// file mirrors the HCL layout. Every block and attribute is optional;
// anything left out keeps its default.
type file struct {
	Server *serverBlock `hcl:"server,block"`
	Player *playerBlock `hcl:"player,block"`
	UI     *uiBlock     `hcl:"ui,block"`
}

type serverBlock struct {
	URL               *string `hcl:"url,optional"`
	ConnectTimeout    *int    `hcl:"connect_timeout,optional"`
	RequestTimeout    *int    `hcl:"request_timeout,optional"`
	KeepaliveInterval *int    `hcl:"keepalive_interval,optional"`
	ReconnectAttempts *int    `hcl:"reconnect_attempts,optional"`
	ReconnectDelay    *int    `hcl:"reconnect_delay,optional"`
}

type playerBlock struct {
	Name       *string `hcl:"name,optional"`
	DefaultBet *int    `hcl:"default_bet,optional"`
	Address    *string `hcl:"address,optional"`
}

type uiBlock struct {
	LogLevel *string `hcl:"log_level,optional"`
	LogFile  *string `hcl:"log_file,optional"`
	Color    *bool   `hcl:"color,optional"`
}

// env holds the CHARLIE_* overrides
type env struct {
	Server     string `envconfig:"server"`
	Player     string `envconfig:"player"`
	Address    string `envconfig:"address"`
	DefaultBet int    `envconfig:"default_bet"`
	LogLevel   string `envconfig:"log_level"`
	LogFile    string `envconfig:"log_file"`
	NoColor    bool   `envconfig:"no_color"`
}

// Default returns the default client configuration
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			URL:               "http://localhost:8080",
			ConnectTimeout:    5,
			RequestTimeout:    3,
			KeepaliveInterval: 30,
			ReconnectAttempts: 3,
			ReconnectDelay:    1,
		},
		Player: PlayerSettings{
			DefaultBet: 5,
		},
		UI: UISettings{
			LogLevel: "info",
			LogFile:  "charlie.log",
			Color:    true,
		},
	}
}

// Load reads filename over the defaults, then applies environment
// overrides. A missing file is not an error.
func Load(filename string) (*Config, error) {
	cfg, err := LoadFile(filename)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads an HCL configuration file over the defaults
func LoadFile(filename string) (*Config, error) {
	cfg := Default()
	if filename == "" {
		return cfg, nil
	}
	if _, err := os.Stat(filename); errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}

	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var raw file
	if diags := gohcl.DecodeBody(f.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg.merge(&raw)
	return cfg, nil
}

func (c *Config) merge(raw *file) {
	if s := raw.Server; s != nil {
		setString(&c.Server.URL, s.URL)
		setInt(&c.Server.ConnectTimeout, s.ConnectTimeout)
		setInt(&c.Server.RequestTimeout, s.RequestTimeout)
		setInt(&c.Server.KeepaliveInterval, s.KeepaliveInterval)
		setInt(&c.Server.ReconnectAttempts, s.ReconnectAttempts)
		setInt(&c.Server.ReconnectDelay, s.ReconnectDelay)
	}
	if p := raw.Player; p != nil {
		setString(&c.Player.Name, p.Name)
		setInt(&c.Player.DefaultBet, p.DefaultBet)
		setString(&c.Player.Address, p.Address)
	}
	if u := raw.UI; u != nil {
		setString(&c.UI.LogLevel, u.LogLevel)
		setString(&c.UI.LogFile, u.LogFile)
		if u.Color != nil {
			c.UI.Color = *u.Color
		}
	}
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from CHARLIE_* environment variables
func (c *Config) ApplyEnv() error {
	var e env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	if e.Server != "" {
		c.Server.URL = e.Server
	}
	if e.Player != "" {
		c.Player.Name = e.Player
	}
	if e.Address != "" {
		c.Player.Address = e.Address
	}
	if e.DefaultBet != 0 {
		c.Player.DefaultBet = e.DefaultBet
	}
	if e.LogLevel != "" {
		c.UI.LogLevel = e.LogLevel
	}
	if e.LogFile != "" {
		c.UI.LogFile = e.LogFile
	}
	if e.NoColor {
		c.UI.Color = false
	}
	return nil
}

// Validate validates the client configuration
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server URL is required")
	}

	if c.Player.Name == "" {
		return fmt.Errorf("player name is required")
	}

	if c.Player.DefaultBet <= 0 {
		return fmt.Errorf("default bet must be positive")
	}

	if c.Server.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}

	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	if c.Server.KeepaliveInterval < 0 {
		return fmt.Errorf("keepalive interval cannot be negative")
	}

	if c.Server.ReconnectAttempts < 1 {
		return fmt.Errorf("reconnect attempts must be at least 1")
	}

	if c.Server.ReconnectDelay < 0 {
		return fmt.Errorf("reconnect delay cannot be negative")
	}

	if _, err := log.ParseLevel(c.UI.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %s", c.UI.LogLevel)
	}

	return nil
}

// Level returns the configured log level, defaulting to info
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.UI.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// Session returns the handler settings
func (c *Config) Session() session.Config {
	cfg := session.DefaultConfig()
	cfg.ConnectTimeout = seconds(c.Server.ConnectTimeout)
	cfg.RequestTimeout = seconds(c.Server.RequestTimeout)
	cfg.ReconnectAttempts = c.Server.ReconnectAttempts
	cfg.ReconnectDelay = seconds(c.Server.ReconnectDelay)
	return cfg
}

// Transport returns the websocket settings
func (c *Config) Transport() client.Options {
	opts := client.DefaultOptions()
	opts.HandshakeTimeout = seconds(c.Server.ConnectTimeout)
	opts.Keepalive = seconds(c.Server.KeepaliveInterval)
	return opts
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
