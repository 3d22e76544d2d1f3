package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server         ServerConfig  `yaml:"server"`
	Logging        LoggingConfig `yaml:"logging"`
	Paths          PathsConfig   `yaml:"paths"`
	Authentication AuthConfig    `yaml:"authentication"`
	OpenId         OpenIdConfig  `yaml:"openid"`
	path           string
}

type ServerConfig struct {
	BaseURL     string `yaml:"base_url"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	EventBuffer int    `yaml:"event_buffer"`
	Workers     int    `yaml:"workers"`
}

type LoggingConfig struct {
	LogPath           string `yaml:"log_path"`
	EnableFileLogging bool   `yaml:"enable_file_logging"`
	Level             string `yaml:"level"`
}

type PathsConfig struct {
	DownloadPath      string `yaml:"download_path"`
	DownloaderPath    string `yaml:"downloader_path"`
	FFmpegPath        string `yaml:"ffmpeg_path"`
	LocalDatabasePath string `yaml:"local_database_path"`
	PublicPath        string `yaml:"public_path"`
}

type AuthConfig struct {
	RequireAuth  bool   `yaml:"require_auth"`
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password"`
	JWTSecret    string `yaml:"jwt_secret"`
}

type OpenIdConfig struct {
	UseOpenId      bool     `yaml:"use_openid"`
	ProviderURL    string   `yaml:"openid_provider_url"`
	ClientId       string   `yaml:"openid_client_id"`
	ClientSecret   string   `yaml:"openid_client_secret"`
	RedirectURL    string   `yaml:"openid_redirect_url"`
	EmailWhitelist []string `yaml:"openid_email_whitelist"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3033)
	v.SetDefault("server.event_buffer", 32)
	v.SetDefault("server.workers", 4)
	v.SetDefault("paths.download_path", "./downloads")
	v.SetDefault("paths.downloader_path", "yt-dlp")
	v.SetDefault("paths.ffmpeg_path", "ffmpeg")
	v.SetDefault("paths.local_database_path", ".")
	v.SetDefault("paths.public_path", "")
	v.SetDefault("logging.log_path", "dlp-bridge.log")
	v.SetDefault("logging.enable_file_logging", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("authentication.require_auth", false)
	v.SetDefault("authentication.username", "")
	v.SetDefault("authentication.password", "")
	v.SetDefault("authentication.jwt_secret", "")
	v.SetDefault("openid.use_openid", false)
}

// Load reads the YAML file at path, if any, overlaid with APP_ prefixed
// environment variables (APP_SERVER_PORT for server.port).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) && !errors.As(err, new(viper.ConfigFileNotFoundError)) {
			return nil, fmt.Errorf("cannot read config %s: %w", path, err)
		}
		slog.Debug("config file not found, using defaults", slog.String("path", path))
	}

	cfg := &Config{path: path}
	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	}); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Server.EventBuffer <= 0 {
		c.Server.EventBuffer = 1
	}
	if c.Server.Workers <= 0 {
		c.Server.Workers = 1
	}
	if c.Paths.DownloadPath == "" {
		return errors.New("paths.download_path must be set")
	}
	if c.Authentication.RequireAuth && c.Authentication.JWTSecret == "" {
		return errors.New("authentication.jwt_secret must be set when require_auth is enabled")
	}
	return nil
}

const redacted = "<redacted>"

func redact(v string) string {
	if v == "" {
		return v
	}
	return redacted
}

// Dump writes the effective configuration as YAML with secrets redacted.
func (c *Config) Dump(w io.Writer) error {
	out := *c
	out.Authentication.PasswordHash = redact(c.Authentication.PasswordHash)
	out.Authentication.JWTSecret = redact(c.Authentication.JWTSecret)
	out.OpenId.ClientSecret = redact(c.OpenId.ClientSecret)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(&out)
}

// Level parsed from logging.level, info when unknown.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Path of the directory containing the config file
func (c *Config) Dir() string { return filepath.Dir(c.path) }

// Absolute path of the config file
func (c *Config) Path() string { return c.path }
