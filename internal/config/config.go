// Package config loads application configuration from config.yaml and
// CLUBAGENT_* environment variables via viper. The resulting Config value
// is passed explicitly into constructors; nothing reads ambient state.
package config

import (
	"fmt"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is the root configuration for the automation agent.
type Config struct {
	Logger      LoggerConfig     `mapstructure:"logger"`
	Server      ServerConfig     `mapstructure:"server"`
	Browser     BrowserConfig    `mapstructure:"browser"`
	Site        SiteConfig       `mapstructure:"site"`
	Session     SessionConfig    `mapstructure:"session"`
	Screenshots ScreenshotConfig `mapstructure:"screenshots"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name"`
	AddSource   bool   `mapstructure:"add_source"`
	LogFile     string `mapstructure:"log_file"`
	MaxSize     int    `mapstructure:"max_size"` // megabytes, per rotated file
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"` // days
	Compress    bool   `mapstructure:"compress"`
}

// ServerConfig configures the HTTP layer.
type ServerConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	CORSOrigins []string      `mapstructure:"cors_origins"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// Addr renders the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BrowserConfig configures the shared Chrome process and per-context
// defaults applied to every session.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"`
	Args              []string      `mapstructure:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	// QuietWait is the settle pause applied after the DOM reports ready.
	QuietWait      time.Duration `mapstructure:"quiet_wait"`
	ViewportWidth  int           `mapstructure:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height"`
	Locale         string        `mapstructure:"locale"`
	Timezone       string        `mapstructure:"timezone"`
}

// SiteConfig pins the external portal's URL surface. The selectors and
// paths here are inherently coupled to the target site's markup.
type SiteConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	LoginPath        string `mapstructure:"login_path"`
	LoginErrorMarker string `mapstructure:"login_error_marker"`
	SelectClubPath   string `mapstructure:"select_club_path"`
	ProfilePath      string `mapstructure:"profile_path"`
	CoursesPath      string `mapstructure:"courses_path"`
}

// LoginURL is the absolute login surface URL.
func (s SiteConfig) LoginURL() string {
	return s.BaseURL + s.LoginPath
}

// SessionConfig controls where persisted session blobs live.
type SessionConfig struct {
	Dir string `mapstructure:"dir"`
}

// ScreenshotConfig toggles diagnostic screenshots.
type ScreenshotConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// Load reads the config file at path (or ./config.yaml when empty),
// applies CLUBAGENT_* environment overrides and defaults, and expands
// "~" in directory paths. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("CLUBAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, dir := range []*string{&cfg.Session.Dir, &cfg.Screenshots.Dir, &cfg.Logger.LogFile} {
		if *dir == "" {
			continue
		}
		expanded, err := homedir.Expand(*dir)
		if err != nil {
			return nil, fmt.Errorf("failed to expand path %q: %w", *dir, err)
		}
		*dir = expanded
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "clubagent")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.read_timeout", 30*time.Second)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", 30*time.Second)
	v.SetDefault("browser.quiet_wait", 1500*time.Millisecond)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)
	v.SetDefault("browser.locale", "es-MX")
	v.SetDefault("browser.timezone", "America/Mexico_City")

	v.SetDefault("site.base_url", "https://clubvirtual-asd.org.mx")
	v.SetDefault("site.login_path", "/login/auth")
	v.SetDefault("site.login_error_marker", "login_error")
	v.SetDefault("site.select_club_path", "/valida/selecciona-club")
	v.SetDefault("site.profile_path", "/mi-perfil")
	v.SetDefault("site.courses_path", "/miembro/cursos-activos")

	v.SetDefault("session.dir", "./sessions")

	v.SetDefault("screenshots.enabled", true)
	v.SetDefault("screenshots.dir", "./screenshots")
}
